package discord

import (
	"context"
	"fmt"
	"strings"

	"izumi/internal/reminder"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// ChannelAPI is the part of the session the chat pipeline and loops post
// through.
type ChannelAPI interface {
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender posts chat replies and loop announcements. It satisfies both
// orchestrator.Sender and scheduler.Poster.
type Sender struct {
	api ChannelAPI
}

func NewSender(api ChannelAPI) *Sender {
	return &Sender{api: api}
}

func (s *Sender) Typing(ctx context.Context, channelID string) error {
	return s.api.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

// Reply answers messageID, falling back to a plain message when the
// original is gone.
func (s *Sender) Reply(ctx context.Context, channelID, messageID, text string) (string, error) {
	ref := &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID}
	m, err := s.api.ChannelMessageSendReply(channelID, text, ref, discordgo.WithContext(ctx))
	if err == nil {
		return m.ID, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	log.WithField("channel", channelID).Debugf("[CHAT] reply failed, sending plain: %v", err)
	return s.Send(ctx, channelID, text)
}

func (s *Sender) Send(ctx context.Context, channelID, text string) (string, error) {
	m, err := s.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", channelID, err)
	}
	return m.ID, nil
}

// ReminderText is the message posted when a reminder fires.
func ReminderText(r storage.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ <@%s>, you asked me to remind you: **%s**", r.CreatorID, r.Message)
	if !r.Created.IsZero() && r.TriggerTime.After(r.Created) {
		fmt.Fprintf(&b, " (set %s ago)", reminder.Format(r.TriggerTime.Sub(r.Created)))
	}
	var others []string
	for _, id := range r.Subscribers {
		if id != r.CreatorID {
			others = append(others, "<@"+id+">")
		}
	}
	if len(others) > 0 {
		b.WriteString("\nAlso for: " + strings.Join(others, " "))
	}
	return b.String()
}

// ReminderNotifier delivers due reminders to their channel.
func ReminderNotifier(s *Sender) reminder.Notify {
	return func(ctx context.Context, r storage.Reminder) {
		if _, err := s.Send(ctx, r.ChannelID, ReminderText(r)); err != nil {
			log.WithFields(log.Fields{"reminder": r.ID, "channel": r.ChannelID}).Warnf("[REMIND] deliver: %v", err)
		}
	}
}
