package middleware

import (
	"context"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/metrics"
	"izumi/internal/storage"
	"izumi/pkg/cmd"

	log "github.com/sirupsen/logrus"
)

// WithCommandLogger counts every run in the usage document and in metrics.
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			result := "ok"
			if err != nil {
				result = "error"
			}
			metrics.Commands.WithLabelValues(c.Name(), result).Inc()

			r, ok := command.RequestFrom(inv.Data)
			if !ok {
				return err
			}
			fields := log.Fields{"guild": r.GuildID, "user": r.UserID, "command": c.Name()}
			if err != nil {
				log.WithFields(fields).Warnf("[CMD] %s failed: %v", c.Name(), err)
			} else {
				log.WithFields(fields).Debugf("[CMD] %s", c.Name())
			}
			if r.Services == nil || r.Services.Storage == nil || r.GuildID == "" {
				return err
			}
			rec := storage.CommandHistoryRecord{
				ChannelID: r.ChannelID,
				UserID:    r.UserID,
				Username:  r.UserName,
				Command:   c.Name(),
				Param:     strings.TrimSpace(r.Sub + " " + strings.Join(r.Args, " ")),
				Datetime:  time.Now(),
			}
			if r.Session != nil && r.Session.State != nil {
				if ch, e := r.Session.State.Channel(r.ChannelID); e == nil {
					rec.ChannelName = ch.Name
				}
				if g, e := r.Session.State.Guild(r.GuildID); e == nil {
					rec.GuildName = g.Name
				}
			}
			if e := r.Services.Storage.AppendCommandToHistory(r.GuildID, rec); e != nil {
				log.Warnf("[CMD] failed to log /%s: %v", c.Name(), e)
			}
			return err
		})
	}
}
