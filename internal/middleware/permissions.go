package middleware

import "context"

// Denial messages, one per failing check. Every denial produces exactly
// one reply to the originating chat.
const (
	msgOwnerOnly    = "This command is restricted to the bot owner."
	msgGroupOnly    = "This command can only be used in groups."
	msgPrivateOnly  = "This command can only be used in private chat."
	msgAdminOnly    = "You must be a group admin to use this command."
	msgBotAdminOnly = "I need to be a group admin to perform this action."
	msgPremiumOnly  = "This command is for premium users only."
)

// CheckPermissions returns the stage enforcing the resolved command's
// declarative permission set. Each failing check replies its specific
// denial message and terminates the pipeline; only when every applicable
// check passes does the event continue.
func CheckPermissions() Middleware {
	return func(ctx context.Context, mc *Context, next Next) error {
		if mc.Command == nil {
			return next(ctx)
		}
		perms := mc.Command.Permissions

		if perms.Owner && !mc.IsOwner {
			return mc.Replier.Reply(ctx, msgOwnerOnly)
		}
		if perms.Group && !mc.IsGroup {
			return mc.Replier.Reply(ctx, msgGroupOnly)
		}
		if perms.Private && mc.IsGroup {
			return mc.Replier.Reply(ctx, msgPrivateOnly)
		}
		if perms.Admin && mc.IsGroup && !mc.IsAdmin {
			return mc.Replier.Reply(ctx, msgAdminOnly)
		}
		if perms.BotAdmin && mc.IsGroup && !mc.IsBotAdmin {
			return mc.Replier.Reply(ctx, msgBotAdminOnly)
		}
		if perms.Premium && !mc.IsOwner && !mc.Premium {
			return mc.Replier.Reply(ctx, msgPremiumOnly)
		}
		return next(ctx)
	}
}
