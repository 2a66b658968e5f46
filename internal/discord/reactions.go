package discord

import (
	"izumi/internal/command"
	"izumi/internal/command/remind"
	"izumi/internal/command/roles"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bot) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.UserID == command.BotID(s) {
		return
	}
	b.reactionRole(s, r.MessageReaction, true)

	if r.Emoji.Name == remind.OptInEmoji && b.svc.Reminders != nil {
		ok, err := b.svc.Reminders.Subscribe(r.MessageID, r.UserID)
		if err != nil {
			log.WithField("message", r.MessageID).Warnf("[REMIND] subscribe: %v", err)
		} else if ok {
			log.WithFields(log.Fields{"message": r.MessageID, "user": r.UserID}).Debug("[REMIND] subscribed")
		}
	}
}

func (b *Bot) onMessageReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" || r.UserID == command.BotID(s) {
		return
	}
	b.reactionRole(s, r.MessageReaction, false)
}

func (b *Bot) reactionRole(s *discordgo.Session, r *discordgo.MessageReaction, added bool) {
	if b.svc.Storage == nil {
		return
	}
	if _, err := roles.OnReaction(s, b.svc.Storage, r.GuildID, r.MessageID, r.Emoji.APIName(), r.UserID, added); err != nil {
		log.WithFields(log.Fields{"guild": r.GuildID, "user": r.UserID}).Warnf("[ROLES] %v", err)
	}
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.User.Bot || b.svc.Storage == nil {
		return
	}
	if err := roles.OnMemberJoin(s, b.svc.Storage, m.GuildID, m.User.ID); err != nil {
		log.WithFields(log.Fields{"guild": m.GuildID, "user": m.User.ID}).Warnf("[ROLES] %v", err)
	}
}
