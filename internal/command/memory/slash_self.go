package memory

import (
	"context"
	"fmt"
	"strings"

	"izumi/internal/command"
	mem "izumi/internal/memory"
	"izumi/internal/middleware"
	"izumi/internal/persona"

	"github.com/bwmarrin/discordgo"
)

// selfTestPrompt is what `self test` asks to check the persona end to end.
const selfTestPrompt = "Tell me a little about yourself: what you like, what you're into lately, and how your day is going."

type SelfCommand struct{}

func (c *SelfCommand) Name() string        { return "self" }
func (c *SelfCommand) Description() string { return "View or edit Izumi's own profile" }
func (c *SelfCommand) Group() string       { return "memory" }
func (c *SelfCommand) Category() string    { return "🧠 Memory" }
func (c *SelfCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func (c *SelfCommand) Aliases() map[string]string {
	return map[string]string{"selftest": "test", "selfadd": "add", "selfclear": "clear"}
}

func categoryOpt(required bool) *discordgo.ApplicationCommandOption {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, cat := range mem.SelfCategories {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: cat, Value: cat})
	}
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "category",
		Description: "Profile category",
		Required:    required,
		Choices:     choices,
	}
}

func (c *SelfCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("view", "Show the self profile", categoryOpt(false)),
			sub("test", "Ask Izumi to describe herself"),
			sub("add", "Add an entry to a category", categoryOpt(true), textOpt("value", "Entry", true)),
			sub("clear", "Empty a category", categoryOpt(true)),
		},
	}
}

func (c *SelfCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Memory

	switch r.Sub {
	case "", "view":
		if cat := r.Value("category", 0); cat != "" {
			items, known := store.Self().Get(cat)
			if !known {
				return r.Fail("Unknown category %q. Categories: %s", cat, strings.Join(mem.SelfCategories, ", "))
			}
			return r.Out.ReplyEmbed(command.Embed("🌸 "+cat, bullets(items)))
		}
		return r.Out.ReplyEmbed(SelfEmbed(store.Self()))
	case "add":
		cat, value := r.Value("category", 0), r.Text("value", 1)
		if cat == "" || value == "" {
			return r.Fail("Usage: `selfadd <category> <entry>`")
		}
		var added bool
		err := store.EditSelf(func(sp *mem.SelfProfile) (err error) {
			added, err = sp.Add(cat, value)
			return err
		})
		if err != nil {
			return r.Fail("%v", err)
		}
		if !added {
			return r.Reply("I already have that in %s.", cat)
		}
		return r.Reply("🌸 Added to %s: %s", cat, value)
	case "clear":
		cat := r.Value("category", 0)
		if cat == "" {
			return r.Fail("Usage: `selfclear <category>`")
		}
		if err := store.EditSelf(func(sp *mem.SelfProfile) error { return sp.Replace(cat, nil) }); err != nil {
			return r.Fail("%v", err)
		}
		return r.Reply("🧹 Cleared %s.", cat)
	case "test":
		return c.test(r, store)
	}
	return r.Fail("Subcommands: view, test, add, clear")
}

func (c *SelfCommand) test(r *command.Request, store *mem.Store) error {
	now := store.Now()
	mood := persona.DailyMood(now, store.Self())
	header := fmt.Sprintf("Mood today: **%s**, time of day: **%s**", mood.Name, persona.TimeOfDay(now).Name)
	if r.Services.Chat == nil {
		return r.Reply("%s\n(chat is offline)", header)
	}
	reply, err := r.Services.Chat.Ask(context.Background(), r.ChannelID, r.UserName, selfTestPrompt)
	if err != nil {
		return r.Fail("%s\nSelf test failed: %v", header, err)
	}
	return r.Reply("%s\n\n%s", header, reply)
}

// SelfEmbed lists every non-empty category.
func SelfEmbed(sp *mem.SelfProfile) *discordgo.MessageEmbed {
	embed := command.Embed("🌸 Izumi", "")
	for _, cat := range mem.SelfCategories {
		items, _ := sp.Get(cat)
		if len(items) == 0 {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  cat,
			Value: clip(strings.Join(items, ", "), 1024),
		})
	}
	if len(embed.Fields) == 0 {
		embed.Description = "The self profile is empty."
	}
	return embed
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "(empty)"
	}
	return clip("• "+strings.Join(items, "\n• "), 4000)
}

func init() {
	command.RegisterCommand(&SelfCommand{}, middleware.Standard()...)
}
