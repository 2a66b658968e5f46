package discord

import (
	"context"

	"izumi/internal/command"

	log "github.com/sirupsen/logrus"
)

func (b *Bot) handleSystemEvents(ctx context.Context) {
	for {
		select {
		case evt := <-command.SystemEvents():
			switch evt.Type {
			case command.SystemEventRefreshCommands:
				log.WithField("guild", evt.GuildID).Infof("[INFO] Refreshing commands (target: %s)", evt.Target)
				sy, err := b.syncer()
				if err != nil {
					log.WithField("guild", evt.GuildID).Errorf("[ERR] Failed to resolve app ID: %v", err)
					continue
				}
				if err := sy.refresh(evt, b.cfg.Blacklisted(evt.GuildID)); err != nil {
					log.WithField("guild", evt.GuildID).Errorf("[ERR] Failed to refresh commands: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
