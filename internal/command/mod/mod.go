// Package mod holds the moderation commands.
package mod

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"izumi/internal/command"

	"github.com/bwmarrin/discordgo"
)

// Platform is the part of the session moderation needs.
type Platform interface {
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

var platformFor = func(r *command.Request) Platform {
	if r.Session == nil {
		return nil
	}
	return r.Session
}

// MaxTimeout is the longest timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

// ParseDuration reads a single Ns, Nm, Nh or Nd token.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("duration %q: want a number and one of s, m, h, d", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("duration %q: want a positive number", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("duration %q: unknown unit", s)
	}
	d := time.Duration(n) * unit
	if d > MaxTimeout {
		return 0, fmt.Errorf("duration %q: longer than 28 days", s)
	}
	return d, nil
}

// Human renders a timeout the way it was typed.
func Human(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return fmt.Sprintf("%ds", d/time.Second)
}

func target(r *command.Request) (string, error) {
	id := command.ParseID(r.Value("user", 0))
	switch {
	case id == "":
		return "", r.Fail("Please mention a member.")
	case id == r.UserID:
		return "", r.Fail("You can't do that to yourself.")
	case r.Session != nil && r.Session.State != nil && r.Session.State.User != nil && id == r.Session.State.User.ID:
		return "", r.Fail("Nice try.")
	}
	return id, nil
}

func reason(r *command.Request, i int) string {
	if s := strings.TrimSpace(r.Text("reason", i)); s != "" {
		return s
	}
	return "No reason given"
}

func userOpt(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: "Member",
		Required:    required,
	}
}

func reasonOpt() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why",
	}
}

// notify tells a member privately; failures are ignored since many members
// close their DMs.
func notify(p Platform, userID, text string) {
	ch, err := p.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = p.ChannelMessageSend(ch.ID, text)
}
