package discord

import (
	"strings"

	"izumi/internal/command"
	"izumi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		c, ok := cmd.DefaultRegistry.Resolve(name)
		if !ok {
			log.Warnf("[WARN] Unknown command: %s", name)
			return
		}
		ctx := &command.SlashInteractionContext{Session: s, Event: i, Services: b.svc}
		if err := c.Run(b.ctx, &cmd.Invocation{Data: ctx}); err != nil {
			log.WithFields(log.Fields{"guild": i.GuildID, "command": name}).Errorf("[ERR] Error running slash command: %v", err)
			_ = command.RespondEmbedEphemeral(s, i, command.Embed("", "Something went wrong running that command."))
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		c, ok := componentOwner(customID)
		if !ok {
			log.Warnf("[WARN] No matching component for customID: %s", customID)
			return
		}
		h, ok := cmd.Root(c).(command.ComponentInteractionHandler)
		if !ok {
			log.Warnf("[WARN] Command %s does not handle components", c.Name())
			return
		}
		ctx := &command.ComponentInteractionContext{Session: s, Event: i, Services: b.svc}
		if err := h.Component(ctx); err != nil {
			log.WithField("command", c.Name()).Errorf("[ERR] Error running component: %v", err)
		}

	default:
		log.Debugf("[DEBUG] Unknown interaction type: %d", i.Type)
	}
}

// componentOwner routes a custom ID of the form "<command>:..." to the
// command that issued it.
func componentOwner(customID string) (cmd.Command, bool) {
	name, _, _ := strings.Cut(customID, ":")
	if name == "" {
		return nil, false
	}
	return cmd.DefaultRegistry.Resolve(name)
}
