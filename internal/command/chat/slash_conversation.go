// Package chat holds the commands that steer the chat companion: where it
// joins conversations on its own, and a direct line to it.
package chat

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"izumi/internal/command"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

type ConversationCommand struct{}

func (c *ConversationCommand) Name() string        { return "conversation" }
func (c *ConversationCommand) Description() string { return "Channels where I join in without being asked" }
func (c *ConversationCommand) Group() string       { return "chat" }
func (c *ConversationCommand) Category() string    { return "💬 Chat" }
func (c *ConversationCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageChannels}
}

func (c *ConversationCommand) SlashDefinition() *discordgo.ApplicationCommand {
	channel := &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  "Channel, defaults to this one",
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "enable",
				Description: "Let me join conversations here",
				Options:     []*discordgo.ApplicationCommandOption{channel},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "disable",
				Description: "Only answer when spoken to",
				Options:     []*discordgo.ApplicationCommandOption{channel},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Channels I join in",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "tune",
				Description: "Adjust how eagerly I join in",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "setting",
						Description: "What to change",
						Required:    true,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "chance (0-1)", Value: "chance"},
							{Name: "cooldown (seconds)", Value: "cooldown"},
							{Name: "messages needed", Value: "messages"},
							{Name: "people needed", Value: "users"},
							{Name: "window (seconds)", Value: "window"},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "value",
						Description: "New value",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *ConversationCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Memory
	channel := func(i int) string {
		if id := command.ParseID(r.Value("channel", i)); id != "" {
			return id
		}
		return r.ChannelID
	}

	switch r.Sub {
	case "enable":
		ch := channel(0)
		if _, ok := store.ConversationChannel(ch); ok {
			return r.Reply("I already join conversations in <#%s>.", ch)
		}
		store.SetConversationChannel(ch, mem.DefaultConversationChannel(r.GuildID))
		return r.Reply("💬 I'll join conversations in <#%s> now and then.", ch)
	case "disable":
		ch := channel(0)
		if !store.RemoveConversationChannel(ch) {
			return r.Fail("<#%s> isn't a conversation channel.", ch)
		}
		return r.Reply("🤐 I'll only answer in <#%s> when spoken to.", ch)
	case "tune":
		ch := r.ChannelID
		cfg, ok := store.ConversationChannel(ch)
		if !ok {
			return r.Fail("Enable this channel first with `conversation enable`.")
		}
		setting := strings.ToLower(r.Value("setting", 0))
		v, err := strconv.ParseFloat(r.Value("value", 1), 64)
		if err != nil {
			return r.Fail("Usage: `conversation tune <chance|cooldown|messages|users|window> <value>`")
		}
		if err := Tune(&cfg, setting, v); err != nil {
			return r.Fail("%v", err)
		}
		store.SetConversationChannel(ch, cfg)
		return r.Reply("Tuned <#%s>: %s", ch, Describe(cfg))
	}

	var lines []string
	for id, cfg := range store.ConversationChannels() {
		if cfg.GuildID != "" && cfg.GuildID != r.GuildID {
			continue
		}
		lines = append(lines, fmt.Sprintf("<#%s> %s", id, Describe(cfg)))
	}
	if len(lines) == 0 {
		return r.Reply("I only speak when spoken to here. `conversation enable` changes that.")
	}
	sort.Strings(lines)
	return r.Out.ReplyEmbed(command.Embed("💬 Conversation channels", strings.Join(lines, "\n")))
}

// Tune changes one knob of a conversation channel.
func Tune(cfg *mem.ConversationChannel, setting string, v float64) error {
	switch setting {
	case "chance":
		if v < 0 || v > 1 {
			return fmt.Errorf("chance must be between 0 and 1")
		}
		cfg.ParticipationChance = v
	case "cooldown":
		if v < 0 {
			return fmt.Errorf("cooldown can't be negative")
		}
		cfg.CooldownSec = int(v)
	case "messages":
		if v < 1 {
			return fmt.Errorf("at least one message is needed")
		}
		cfg.MinMessages = int(v)
	case "users":
		if v < 1 {
			return fmt.Errorf("at least one person is needed")
		}
		cfg.MinUsers = int(v)
	case "window":
		if v < 10 {
			return fmt.Errorf("the window must be at least 10 seconds")
		}
		cfg.TimeWindowSec = int(v)
	default:
		return fmt.Errorf("unknown setting %q, pick chance, cooldown, messages, users or window", setting)
	}
	return nil
}

// Describe renders the knobs of a conversation channel on one line.
func Describe(cfg mem.ConversationChannel) string {
	return fmt.Sprintf("· %.0f%% chance · %d msgs from %d people in %ds · %ds cooldown",
		cfg.ParticipationChance*100, cfg.MinMessages, cfg.MinUsers, cfg.TimeWindowSec, cfg.CooldownSec)
}

func init() {
	command.RegisterCommand(&ConversationCommand{}, middleware.Standard()...)
}
