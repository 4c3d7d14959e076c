package middleware

import (
	"context"
	"log/slog"

	"github.com/whatsdex/gateway/internal/ratelimit"
)

// cooldownReaction is the throttle indicator sent instead of a text
// reply, so throttled users cannot farm reply traffic.
const cooldownReaction = "💤"

// Banned users get one reply plus a marker reaction, then the event
// stops.
const (
	bannedReaction = "🚫"
	msgBanned      = "You are banned from using this bot."
)

// CooldownConfig sets the bot-wide budget applied to every sender.
type CooldownConfig struct {
	BotWide ratelimit.Budget
}

// Cooldown returns the stage enforcing the bot-wide cooldown and then
// the per-command cooldown. Owners and premium users are exempt,
// matching the original restriction order. On violation it reacts with
// the throttle indicator and terminates the pipeline.
func Cooldown(limiter ratelimit.Limiter, cfg CooldownConfig) Middleware {
	return func(ctx context.Context, mc *Context, next Next) error {
		if mc.Banned {
			slog.Info("rejecting event from banned user",
				"tenant", mc.Event.TenantID, "user", mc.UserID)
			if err := mc.Replier.React(ctx, bannedReaction); err != nil {
				slog.Warn("banned reaction failed", "error", err)
			}
			return mc.Replier.Reply(ctx, msgBanned)
		}
		if mc.IsOwner || mc.Premium {
			return next(ctx)
		}

		key := mc.Event.TenantID + ":" + mc.UserID
		if !limiter.Check(key, cfg.BotWide) {
			return deny(ctx, mc)
		}

		if mc.Command != nil && mc.Command.Cooldown != nil {
			if !limiter.Check(key+":"+mc.Command.Name, *mc.Command.Cooldown) {
				return deny(ctx, mc)
			}
		}
		return next(ctx)
	}
}

func deny(ctx context.Context, mc *Context) error {
	slog.Debug("cooldown denial",
		"tenant", mc.Event.TenantID,
		"user", mc.UserID,
		"channel", mc.Event.ChannelID,
	)
	if err := mc.Replier.React(ctx, cooldownReaction); err != nil {
		slog.Warn("cooldown reaction failed", "error", err)
	}
	return nil
}
