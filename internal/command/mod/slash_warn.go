package mod

import (
	"fmt"
	"strings"
	"time"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

type WarnCommand struct{}

func (c *WarnCommand) Name() string        { return "warn" }
func (c *WarnCommand) Description() string { return "Warn a member" }
func (c *WarnCommand) Group() string       { return "moderation" }
func (c *WarnCommand) Category() string    { return "🛡️ Moderation" }
func (c *WarnCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionModerateMembers}
}

func (c *WarnCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options:     []*discordgo.ApplicationCommandOption{userOpt(true), reasonOpt()},
	}
}

func (c *WarnCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id, err := target(r)
	if id == "" {
		return err
	}
	why := reason(r, 1)
	n, err := r.Services.Storage.AddWarning(r.GuildID, id, r.UserID, why, time.Now())
	if err != nil {
		return err
	}
	if p := platformFor(r); p != nil {
		notify(p, id, fmt.Sprintf("⚠️ You were warned in a server: %s", why))
	}
	return r.Reply("⚠️ <@%s> has been warned (%s). That's warning #%d.", id, why, n)
}

type WarningsCommand struct{}

func (c *WarningsCommand) Name() string        { return "warnings" }
func (c *WarningsCommand) Description() string { return "List or clear a member's warnings" }
func (c *WarningsCommand) Group() string       { return "moderation" }
func (c *WarningsCommand) Category() string    { return "🛡️ Moderation" }
func (c *WarningsCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionModerateMembers}
}

func (c *WarningsCommand) Aliases() map[string]string {
	return map[string]string{"clearwarnings": "clear"}
}

func (c *WarningsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	sub := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     []*discordgo.ApplicationCommandOption{userOpt(true)},
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("list", "Show a member's warnings"),
			sub("clear", "Remove every warning of a member"),
		},
	}
}

func (c *WarningsCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	id := command.ParseID(r.Value("user", 0))
	if id == "" {
		return r.Fail("Please mention a member.")
	}
	store := r.Services.Storage

	if r.Sub == "clear" {
		n, err := store.ClearWarnings(r.GuildID, id)
		if err != nil {
			return err
		}
		return r.Reply("🧽 Cleared %d warning(s) for <@%s>.", n, id)
	}

	list, err := store.Warnings(r.GuildID, id)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return r.Reply("<@%s> has a clean record.", id)
	}
	var b strings.Builder
	for i, w := range list {
		fmt.Fprintf(&b, "**%d.** %s · by <@%s> · <t:%d:R> · `%s`\n", i+1, w.Reason, w.ModeratorID, w.Time.Unix(), w.ID)
	}
	return r.Out.ReplyEmbed(command.Embed(fmt.Sprintf("⚠️ Warnings (%d)", len(list)), b.String()))
}

func init() {
	command.RegisterCommand(&WarnCommand{}, middleware.Standard()...)
	command.RegisterCommand(&WarningsCommand{}, middleware.Standard()...)
}
