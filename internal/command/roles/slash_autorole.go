package roles

import (
	"errors"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type AutoRoleCommand struct{}

func (c *AutoRoleCommand) Name() string        { return "autorole" }
func (c *AutoRoleCommand) Description() string { return "Roles given to every new member" }
func (c *AutoRoleCommand) Group() string       { return "roles" }
func (c *AutoRoleCommand) Category() string    { return "🎭 Roles" }
func (c *AutoRoleCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageRoles}
}

func (c *AutoRoleCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("add", "Add an auto role", opt(discordgo.ApplicationCommandOptionRole, "role", "Role", true)),
			sub("remove", "Remove an auto role", opt(discordgo.ApplicationCommandOptionRole, "role", "Role", true)),
			sub("list", "List auto roles"),
		},
	}
}

func (c *AutoRoleCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage

	switch r.Sub {
	case "add", "remove":
		role := command.ParseID(r.Value("role", 0))
		if role == "" {
			return r.Fail("Usage: `autorole %s <@role>`", r.Sub)
		}
		if r.Sub == "add" {
			added, err := store.AddAutoRole(r.GuildID, role)
			if err != nil {
				return err
			}
			if !added {
				return r.Reply("%s is already an auto role.", roleMention(role))
			}
			return r.Reply("👋 New members will get %s.", roleMention(role))
		}
		err := store.RemoveAutoRole(r.GuildID, role)
		if errors.Is(err, storage.ErrNotFound) {
			return r.Fail("%s is not an auto role.", roleMention(role))
		}
		if err != nil {
			return err
		}
		return r.Reply("👋 %s is no longer an auto role.", roleMention(role))
	case "", "list":
		ids, err := store.AutoRoles(r.GuildID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return r.Reply("No auto roles are set up.")
		}
		var mentions []string
		for _, id := range ids {
			mentions = append(mentions, roleMention(id))
		}
		return r.Out.ReplyEmbed(command.Embed("👋 Auto roles", strings.Join(mentions, "\n")))
	}
	return r.Fail("Subcommands: add, remove, list")
}

func init() {
	command.RegisterCommand(&AutoRoleCommand{}, middleware.Standard()...)
}
