package roles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type LevelRoleCommand struct{}

func (c *LevelRoleCommand) Name() string        { return "levelrole" }
func (c *LevelRoleCommand) Description() string { return "Bind roles to levels" }
func (c *LevelRoleCommand) Group() string       { return "roles" }
func (c *LevelRoleCommand) Category() string    { return "🎭 Roles" }
func (c *LevelRoleCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageRoles}
}

func (c *LevelRoleCommand) Aliases() map[string]string {
	return map[string]string{
		"setlevelrole":    "set",
		"removelevelrole": "remove",
		"levelroles":      "list",
		"syncuserroles":   "sync",
	}
}

func (c *LevelRoleCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("set", "Give a role at a level",
				opt(discordgo.ApplicationCommandOptionInteger, "level", "Level", true),
				opt(discordgo.ApplicationCommandOptionRole, "role", "Role", true)),
			sub("remove", "Unbind a level",
				opt(discordgo.ApplicationCommandOptionInteger, "level", "Level", true)),
			sub("list", "List level roles"),
			sub("sync", "Bring a member's roles in line with their level",
				opt(discordgo.ApplicationCommandOptionUser, "user", "Member, defaults to you", false)),
		},
	}
}

func (c *LevelRoleCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage

	switch r.Sub {
	case "set":
		level, err := strconv.Atoi(r.Value("level", 0))
		role := command.ParseID(r.Value("role", 1))
		if err != nil || level < 1 || role == "" {
			return r.Fail("Usage: `setlevelrole <level> <@role>`")
		}
		if err := store.SetLevelRole(r.GuildID, level, role); err != nil {
			return err
		}
		return r.Reply("🎭 Members reaching level %d now get %s.", level, roleMention(role))
	case "remove":
		level, err := strconv.Atoi(r.Value("level", 0))
		if err != nil {
			return r.Fail("Usage: `removelevelrole <level>`")
		}
		err = store.RemoveLevelRole(r.GuildID, level)
		if errors.Is(err, storage.ErrNotFound) {
			return r.Fail("No role is bound to level %d.", level)
		}
		if err != nil {
			return err
		}
		return r.Reply("🎭 Level %d no longer grants a role.", level)
	case "list":
		bindings, err := store.LevelRoles(r.GuildID)
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			return r.Reply("No level roles are set up.")
		}
		var lines []string
		for _, b := range bindings {
			lines = append(lines, fmt.Sprintf("Level **%d** → %s", b.Level, roleMention(b.RoleID)))
		}
		return r.Out.ReplyEmbed(command.Embed("🎭 Level roles", strings.Join(lines, "\n")))
	case "sync":
		p := platformFor(r)
		if p == nil {
			return r.Fail("Role sync is not available right now.")
		}
		id := r.Target("user", 0)
		changed, err := SyncMember(p, store, r.GuildID, id)
		if err != nil {
			return r.Fail("Could not sync roles for <@%s>: %v", id, err)
		}
		if len(changed.Added)+len(changed.Removed) == 0 {
			return r.Reply("<@%s> already has the right roles.", id)
		}
		return r.Reply("🔄 Synced <@%s>: +%d / -%d roles.", id, len(changed.Added), len(changed.Removed))
	}
	return r.Fail("Subcommands: set, remove, list, sync")
}

func init() {
	command.RegisterCommand(&LevelRoleCommand{}, middleware.Standard()...)
}
