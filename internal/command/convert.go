package command

import (
	"izumi/internal/learning"
	"izumi/internal/media"
	"izumi/internal/orchestrator"

	"github.com/bwmarrin/discordgo"
)

// ChatMessage converts a gateway message for the orchestrator.
func ChatMessage(m *discordgo.Message, botID, channelName string) orchestrator.Message {
	out := orchestrator.Message{
		ID:          m.ID,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.Username = m.Author.Username
		out.DisplayName = displayName(m.Member, m.Author)
	}
	for _, u := range m.Mentions {
		out.Mentions = append(out.Mentions, learning.Mention{UserID: u.ID, Bot: u.Bot})
		if u.ID == botID {
			out.MentionsBot = true
		}
	}
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil {
		out.ReplyToUserID = ref.Author.ID
		out.ReplyToBot = ref.Author.ID == botID
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, media.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	for _, e := range m.Embeds {
		switch {
		case e.Image != nil && e.Image.URL != "":
			out.EmbedImages = append(out.EmbedImages, e.Image.URL)
		case e.Thumbnail != nil && e.Thumbnail.URL != "":
			out.EmbedImages = append(out.EmbedImages, e.Thumbnail.URL)
		}
	}
	return out
}

// LearningMessage converts a (possibly historical) message for the learning
// extractor.
func LearningMessage(m *discordgo.Message, botID, channelName string) learning.Message {
	c := ChatMessage(m, botID, channelName)
	return learning.Message{
		ID:             c.ID,
		GuildID:        c.GuildID,
		ChannelID:      c.ChannelID,
		ChannelName:    c.ChannelName,
		AuthorID:       c.AuthorID,
		DisplayName:    c.DisplayName,
		Username:       c.Username,
		IsBot:          m.Author == nil || m.Author.Bot,
		Content:        c.Content,
		Timestamp:      c.Timestamp,
		Mentions:       c.Mentions,
		MentionsBot:    c.MentionsBot,
		ReplyToUserID:  c.ReplyToUserID,
		HasAttachments: len(m.Attachments) > 0,
	}
}

// BotID is the id of the logged in user, or "" before ready.
func BotID(s *discordgo.Session) string {
	if s == nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

// History is the part of the session that pages through channel messages.
type History interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}
