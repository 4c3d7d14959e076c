package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/whatsdex/gateway/internal/moderation"
)

// moderationTimeout bounds the moderation call. A hung moderation
// backend must not stall the event, let alone other tenants' events.
const moderationTimeout = 5 * time.Second

// Moderation returns the stage submitting the event's text content to
// the content-safety collaborator. Unsafe content replies with the
// violated category list and terminates the pipeline. When the moderator
// itself errors, the stage fails open — logs at warning and continues —
// so a moderation outage does not become a gateway outage.
func Moderation(mod moderation.Moderator) Middleware {
	return func(ctx context.Context, mc *Context, next Next) error {
		if mc.Event.Content == "" {
			return next(ctx)
		}

		modCtx, cancel := context.WithTimeout(ctx, moderationTimeout)
		result, err := mod.Moderate(modCtx, mc.Event.Content, moderation.Scope{
			UserID:  mc.UserID,
			GroupID: mc.GroupID,
		})
		cancel()

		if err != nil {
			slog.Warn("moderation check failed, continuing",
				"tenant", mc.Event.TenantID,
				"user", mc.UserID,
				"error", err,
			)
			return next(ctx)
		}

		if !result.Safe {
			slog.Warn("content flagged by moderation",
				"tenant", mc.Event.TenantID,
				"user", mc.UserID,
				"categories", result.Categories,
				"score", result.Score,
			)
			return mc.Replier.Reply(ctx,
				"Your message was flagged for: "+strings.Join(result.Categories, ", "))
		}
		return next(ctx)
	}
}
