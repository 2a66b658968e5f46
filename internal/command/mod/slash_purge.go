package mod

import (
	"context"
	"time"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

const (
	DefaultPurge = 10
	MaxPurge     = 100
	// bulkAge is how old a message may be and still be bulk deleted.
	bulkAge = 14 * 24 * time.Hour
	// scanPages bounds how far back a filtered purge looks.
	scanPages = 5
)

type PurgeCommand struct{}

func (c *PurgeCommand) Name() string        { return "purge" }
func (c *PurgeCommand) Description() string { return "Delete recent messages" }
func (c *PurgeCommand) Group() string       { return "moderation" }
func (c *PurgeCommand) Category() string    { return "🛡️ Moderation" }
func (c *PurgeCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageMessages}
}

func (c *PurgeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	one := float64(1)
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many, up to 100",
				MinValue:    &one,
				MaxValue:    MaxPurge,
			},
			userOpt(false),
		},
	}
}

func (c *PurgeCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	count := r.Int("count", 0, DefaultPurge)
	if count < 1 || count > MaxPurge {
		return r.Fail("Pick a count between 1 and %d.", MaxPurge)
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	n, err := Purge(p, r.ChannelID, count, command.ParseID(r.Value("user", 1)), r.MessageID, time.Now())
	if err != nil {
		return r.Fail("I couldn't delete messages: %v", err)
	}
	return r.Reply("🧹 Deleted %d message(s).", n)
}

// Purge deletes up to count recent messages in a channel, only those by
// userID when set. skipID, the invoking message, is also deleted but not
// counted. Messages older than the bulk window are left alone.
func Purge(p Platform, channelID string, count int, userID, skipID string, now time.Time) (int, error) {
	var ids []string
	before := ""
	pages := 1
	if userID != "" {
		pages = scanPages
	}
scan:
	for page := 0; page < pages && len(ids) < count; page++ {
		msgs, err := p.ChannelMessages(channelID, 100, before, "", "")
		if err != nil {
			return 0, err
		}
		for _, m := range msgs {
			before = m.ID
			if m.ID == skipID {
				continue
			}
			if now.Sub(m.Timestamp) >= bulkAge {
				break scan
			}
			if userID != "" && (m.Author == nil || m.Author.ID != userID) {
				continue
			}
			ids = append(ids, m.ID)
			if len(ids) == count {
				break scan
			}
		}
		if len(msgs) < 100 {
			break
		}
	}
	if skipID != "" {
		ids = append(ids, skipID)
	}
	deleted := len(ids)
	if skipID != "" {
		deleted--
	}
	switch len(ids) {
	case 0:
		return 0, nil
	case 1:
		return deleted, p.ChannelMessageDelete(channelID, ids[0])
	}
	return deleted, p.ChannelMessagesBulkDelete(channelID, ids)
}

const MaxSpam = 20

// spamEvery paces repeated sends under the platform's channel rate limit.
var spamEvery = rate.Every(time.Second)

type SpamCommand struct{}

func (c *SpamCommand) Name() string        { return "spam" }
func (c *SpamCommand) Description() string { return "Send a message several times" }
func (c *SpamCommand) Group() string       { return "moderation" }
func (c *SpamCommand) Category() string    { return "🛡️ Moderation" }
func (c *SpamCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *SpamCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many times, up to 20",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "What to send",
				Required:    true,
			},
		},
	}
}

func (c *SpamCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	count := r.Int("count", 0, 0)
	text := r.Text("message", 1)
	if count < 1 || text == "" {
		return r.Fail("Usage: `spam <count> \"message\"`")
	}
	if count > MaxSpam {
		count = MaxSpam
	}
	p := platformFor(r)
	if p == nil {
		return r.Fail("I can't reach the server right now.")
	}
	if err := r.Reply("📢 Sending %d time(s).", count); err != nil {
		return err
	}
	lim := rate.NewLimiter(spamEvery, 1)
	for i := 0; i < count; i++ {
		if err := lim.Wait(context.Background()); err != nil {
			return err
		}
		if _, err := p.ChannelMessageSend(r.ChannelID, text); err != nil {
			return r.Fail("Stopped after %d: %v", i, err)
		}
	}
	return nil
}

func init() {
	command.RegisterCommand(&PurgeCommand{}, middleware.Standard()...)
	command.RegisterCommand(&SpamCommand{}, middleware.Standard()...)
}
