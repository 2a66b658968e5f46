// Package remind exposes the reminder service as commands.
package remind

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/middleware"
	"izumi/internal/reminder"

	"github.com/bwmarrin/discordgo"
)

// OptInEmoji is seeded on confirmations; reacting with it subscribes.
const OptInEmoji = "⏰"

// Poster sends the public confirmation other members react to.
type Poster interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

var posterFor = func(r *command.Request) Poster {
	if r.Session == nil {
		return nil
	}
	return r.Session
}

// SplitDuration takes the longest run of leading words that reads as a
// duration and returns it with the remaining words as the message.
func SplitDuration(args []string) (time.Duration, string, error) {
	for k := len(args); k > 0; k-- {
		if d, err := reminder.ParseDuration(strings.Join(args[:k], " ")); err == nil {
			return d, strings.Join(args[k:], " "), nil
		}
	}
	return 0, "", reminder.ErrInvalidDuration
}

type RemindMeCommand struct{}

func (c *RemindMeCommand) Name() string             { return "remindme" }
func (c *RemindMeCommand) Description() string      { return "Set a reminder" }
func (c *RemindMeCommand) Group() string            { return "utility" }
func (c *RemindMeCommand) Category() string         { return "🛠️ Utility" }
func (c *RemindMeCommand) UserPermissions() []int64 { return nil }

func (c *RemindMeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "duration",
				Description: "Like 45, 2h, 1d 6h or 3 weeks",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "What to remind you about",
			},
		},
	}
}

func (c *RemindMeCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	var (
		d   time.Duration
		msg string
		err error
	)
	if r.Slash {
		msg = r.Options["message"]
		d, err = reminder.ParseDuration(r.Options["duration"])
	} else {
		d, msg, err = SplitDuration(r.Args)
	}
	if err != nil {
		return r.Fail("I couldn't read that duration. Try `remindme 2h stretch`, `remindme 1d 6h`, or just minutes like `remindme 45`.")
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "something"
	}

	rem, err := r.Services.Reminders.Create(r.UserID, r.GuildID, r.ChannelID, msg, d)
	switch {
	case errors.Is(err, reminder.ErrTooSoon), errors.Is(err, reminder.ErrTooFar), errors.Is(err, reminder.ErrTooMany):
		return r.Fail("%s.", capitalize(err.Error()))
	case err != nil:
		return err
	}

	text := fmt.Sprintf("⏰ <@%s>, I'll remind you about **%s** <t:%d:R> (`%s`).\nReact with %s to be pinged too.",
		r.UserID, msg, rem.TriggerTime.Unix(), rem.ID[:8], OptInEmoji)
	p := posterFor(r)
	if p == nil {
		return r.Reply("%s", text)
	}
	sent, err := p.ChannelMessageSend(r.ChannelID, text)
	if err != nil {
		return r.Reply("%s", text)
	}
	if err := r.Services.Reminders.AttachMessage(rem.ID, sent.ID); err != nil {
		return err
	}
	_ = p.MessageReactionAdd(r.ChannelID, sent.ID, OptInEmoji)
	if r.Slash {
		return r.Fail("Reminder set for %s from now.", reminder.Format(d))
	}
	return nil
}

type RemindersCommand struct{}

func (c *RemindersCommand) Name() string             { return "reminders" }
func (c *RemindersCommand) Description() string      { return "List your pending reminders" }
func (c *RemindersCommand) Group() string            { return "utility" }
func (c *RemindersCommand) Category() string         { return "🛠️ Utility" }
func (c *RemindersCommand) UserPermissions() []int64 { return nil }

func (c *RemindersCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *RemindersCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	list := r.Services.Reminders.List(r.UserID)
	if len(list) == 0 {
		return r.Reply("You have no pending reminders.")
	}
	var b strings.Builder
	for _, rem := range list {
		fmt.Fprintf(&b, "`%s` <t:%d:R> · %s", rem.ID[:8], rem.TriggerTime.Unix(), rem.Message)
		if n := len(rem.Subscribers); n > 0 {
			fmt.Fprintf(&b, " · +%d", n)
		}
		b.WriteByte('\n')
	}
	embed := command.Embed(fmt.Sprintf("⏰ Your reminders (%d)", len(list)), b.String())
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "cancelreminder <id> removes one"}
	return r.Out.ReplyEmbed(embed)
}

type CancelReminderCommand struct{}

func (c *CancelReminderCommand) Name() string             { return "cancelreminder" }
func (c *CancelReminderCommand) Description() string      { return "Cancel one of your reminders" }
func (c *CancelReminderCommand) Group() string            { return "utility" }
func (c *CancelReminderCommand) Category() string         { return "🛠️ Utility" }
func (c *CancelReminderCommand) UserPermissions() []int64 { return nil }

func (c *CancelReminderCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "id",
			Description: "The id shown by /reminders",
			Required:    true,
		}},
	}
}

func (c *CancelReminderCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id := strings.Trim(r.Value("id", 0), "`")
	if id == "" {
		return r.Fail("Which one? `reminders` shows the ids.")
	}
	switch err := r.Services.Reminders.Cancel(id, r.UserID); {
	case errors.Is(err, reminder.ErrNotFound):
		return r.Fail("I can't find a reminder `%s`.", id)
	case errors.Is(err, reminder.ErrNotOwner):
		return r.Fail("Only whoever set that reminder can cancel it.")
	case err != nil:
		return err
	}
	return r.Reply("🗑️ Reminder `%s` cancelled.", id)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func init() {
	command.RegisterCommand(&RemindMeCommand{}, middleware.Standard()...)
	command.RegisterCommand(&RemindersCommand{}, middleware.Standard()...)
	command.RegisterCommand(&CancelReminderCommand{}, middleware.Standard()...)
}
