package middleware

import (
	"context"
	"strings"

	"izumi/internal/command"
	"izumi/pkg/cmd"
)

// WithChannelGate limits a command to the channels allowed for feature.
// A guild with no channels configured allows every channel.
func WithChannelGate(feature string) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			r, ok := command.RequestFrom(inv.Data)
			if !ok || r.GuildID == "" || r.Services == nil || r.Services.Storage == nil {
				return c.Run(ctx, inv)
			}
			store := r.Services.Storage
			if store.ChannelAllowed(r.GuildID, feature, r.ChannelID) {
				return c.Run(ctx, inv)
			}
			ids, _ := store.AllowedChannels(r.GuildID, feature)
			mentions := make([]string, len(ids))
			for i, id := range ids {
				mentions[i] = "<#" + id + ">"
			}
			return r.Fail("This command only works in %s.", strings.Join(mentions, ", "))
		})
	}
}
