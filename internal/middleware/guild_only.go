// Package middleware holds the cmd.Middleware set every Discord command is
// registered with.
package middleware

import (
	"context"

	"izumi/internal/command"
	"izumi/pkg/cmd"
)

// Standard is the chain applied to every command, innermost first.
func Standard() []cmd.Middleware {
	return []cmd.Middleware{
		WithGroupAccessCheck(),
		WithGuildOnly(),
		WithUserPermissionCheck(),
		WithCommandLogger(),
	}
}

// WithGuildOnly drops runs that do not come from a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if r, ok := command.RequestFrom(inv.Data); ok && r.GuildID == "" {
				return r.Fail("This command only works inside a server.")
			}
			return c.Run(ctx, inv)
		})
	}
}
