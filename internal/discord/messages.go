package discord

import (
	"fmt"

	"izumi/internal/command"
	"izumi/internal/command/roles"
	"izumi/internal/orchestrator"
	"izumi/pkg/cmd"
	"izumi/pkg/util"

	"github.com/bwmarrin/discordgo"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// EditSimilarity is the similarity below which an edit of a bot-mentioning
// message counts as a new message.
const EditSimilarity = 0.7

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	if name, args, ok := command.ParsePrefix(m.Content, b.cfg.CommandPrefix); ok {
		if c, found := cmd.DefaultRegistry.Resolve(name); found {
			b.runPrefix(s, m, c, name, args)
			return
		}
	}

	b.award(s, m.Message)

	msg := command.ChatMessage(m.Message, command.BotID(s), channelName(s, m.ChannelID))
	if msg.MentionsBot {
		b.edits.Set(m.ID, m.Content, cache.DefaultExpiration)
	}
	b.chat(msg)
}

func (b *Bot) onMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	msg := command.ChatMessage(m.Message, command.BotID(s), channelName(s, m.ChannelID))

	var prev string
	cached, seen := b.edits.Get(m.ID)
	if seen {
		prev = cached.(string)
	}
	if !EditWorthReplying(prev, seen, msg.MentionsBot, m.Content) {
		return
	}
	b.edits.Set(m.ID, m.Content, cache.DefaultExpiration)
	if b.svc.Chat == nil {
		return
	}
	if _, err := b.svc.Chat.HandleEdit(b.ctx, msg); err != nil {
		log.WithFields(log.Fields{"guild": msg.GuildID, "channel": msg.ChannelID}).Warnf("[CHAT] edit: %v", err)
	}
}

// EditWorthReplying decides whether an edited message gets a reply decision
// again: when it newly mentions the bot, or when a message that already did
// was changed substantially. Edits are never learned from twice.
func EditWorthReplying(prev string, seen, mentionsBot bool, content string) bool {
	if !mentionsBot {
		return false
	}
	if !seen {
		return true
	}
	return util.Similarity(prev, content) < EditSimilarity
}

func (b *Bot) chat(msg orchestrator.Message) {
	if b.svc.Chat == nil {
		return
	}
	if _, err := b.svc.Chat.HandleMessage(b.ctx, msg); err != nil {
		log.WithFields(log.Fields{"guild": msg.GuildID, "channel": msg.ChannelID}).Warnf("[CHAT] %v", err)
	}
}

func (b *Bot) runPrefix(s *discordgo.Session, m *discordgo.MessageCreate, c cmd.Command, typed string, args []string) {
	sub, rest := command.ResolveSub(c, typed, args)
	ctx := &command.MessageContext{
		Session:  s,
		Event:    m,
		Name:     typed,
		Sub:      sub,
		Args:     rest,
		Services: b.svc,
	}
	if err := c.Run(b.ctx, &cmd.Invocation{Args: rest, Data: ctx}); err != nil {
		log.WithFields(log.Fields{"guild": m.GuildID, "command": c.Name()}).Errorf("[ERR] Error running prefix command: %v", err)
		_, _ = s.ChannelMessageSendReply(m.ChannelID, fmt.Sprintf("Something went wrong running `%s`.", c.Name()), m.Reference())
	}
}

// award counts the message for leveling and announces level ups.
func (b *Bot) award(s *discordgo.Session, m *discordgo.Message) {
	if b.svc.Leveler == nil {
		return
	}
	fields := log.Fields{"guild": m.GuildID, "user": m.Author.ID}
	a, err := b.svc.Leveler.OnMessage(m.GuildID, m.Author.ID, m.Timestamp)
	if err != nil {
		log.WithFields(fields).Warnf("[XP] award: %v", err)
		return
	}
	if !a.LevelUp {
		return
	}
	if _, err := roles.SyncMember(s, b.svc.Storage, m.GuildID, m.Author.ID); err != nil {
		log.WithFields(fields).Warnf("[XP] sync level roles: %v", err)
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, LevelUpText(m.Author.ID, a.Level)); err != nil {
		log.WithFields(fields).Warnf("[XP] announce level up: %v", err)
	}
}

// LevelUpText is the channel announcement for reaching level.
func LevelUpText(userID string, level int) string {
	return fmt.Sprintf("🎉 <@%s> just reached level **%d**!", userID, level)
}
