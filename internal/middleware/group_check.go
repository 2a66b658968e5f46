package middleware

import (
	"context"

	"izumi/internal/command"
	"izumi/pkg/cmd"
)

// WithGroupAccessCheck refuses commands whose group is disabled in the guild.
// The core group can never be disabled.
func WithGroupAccessCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			r, ok := command.RequestFrom(inv.Data)
			if !ok || r.Services == nil || r.Services.Storage == nil {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok || meta.Group() == "" || meta.Group() == "core" {
				return c.Run(ctx, inv)
			}
			if r.Services.Storage.IsGroupDisabled(r.GuildID, meta.Group()) {
				return r.Fail("This command is disabled on this server.\nUse `/commands status` to see which groups are disabled.")
			}
			return c.Run(ctx, inv)
		})
	}
}
