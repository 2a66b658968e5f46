package roles

import (
	"fmt"
	"sort"
	"strings"

	"izumi/internal/command"
	"izumi/internal/middleware"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

type ReactionRoleCommand struct{}

func (c *ReactionRoleCommand) Name() string        { return "reactionrole" }
func (c *ReactionRoleCommand) Description() string { return "Give roles for reacting to a message" }
func (c *ReactionRoleCommand) Group() string       { return "roles" }
func (c *ReactionRoleCommand) Category() string    { return "🎭 Roles" }
func (c *ReactionRoleCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageRoles}
}

func (c *ReactionRoleCommand) Aliases() map[string]string {
	return map[string]string{"rr": ""}
}

func (c *ReactionRoleCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("set", "Bind an emoji on a message in this channel to a role",
				opt(discordgo.ApplicationCommandOptionString, "message", "Message id", true),
				opt(discordgo.ApplicationCommandOptionString, "emoji", "Emoji", true),
				opt(discordgo.ApplicationCommandOptionRole, "role", "Role", true)),
			sub("sync", "Give bound roles to everyone who already reacted",
				opt(discordgo.ApplicationCommandOptionString, "message", "Message id", true)),
		},
	}
}

func (c *ReactionRoleCommand) Run(ctx any) error {
	r, ok := command.RequestFrom(ctx)
	if !ok {
		return nil
	}
	store := r.Services.Storage
	p := platformFor(r)

	switch r.Sub {
	case "set":
		msgID, emoji, role := command.ParseID(r.Value("message", 0)), EmojiKey(r.Value("emoji", 1)), command.ParseID(r.Value("role", 2))
		if msgID == "" || emoji == "" || role == "" {
			return r.Fail("Usage: `reactionrole set <message id> <emoji> <@role>`")
		}
		if err := store.SetReactionRole(r.GuildID, msgID, emoji, role); err != nil {
			return err
		}
		if p != nil {
			if err := p.MessageReactionAdd(r.ChannelID, msgID, emoji); err != nil {
				log.WithField("guild", r.GuildID).Warnf("[CMD] seed reaction: %v", err)
			}
		}
		return r.Reply("🎭 Reacting with %s on that message now gives %s.", display(emoji), roleMention(role))
	case "sync":
		msgID := command.ParseID(r.Value("message", 0))
		if msgID == "" {
			return r.Fail("Usage: `reactionrole sync <message id>`")
		}
		if p == nil {
			return r.Fail("Role sync is not available right now.")
		}
		all, err := store.ReactionRoles(r.GuildID)
		if err != nil {
			return err
		}
		bindings := all[msgID]
		if len(bindings) == 0 {
			return r.Fail("That message has no reaction roles.")
		}
		granted, err := SyncReactions(p, r.GuildID, r.ChannelID, msgID, bindings)
		if err != nil {
			return r.Fail("Sync stopped after %d roles: %v", granted, err)
		}
		return r.Reply("🔄 Granted %d roles from existing reactions.", granted)
	}
	return r.Fail("Subcommands: set, sync")
}

// SyncReactions grants every bound role to the users who already reacted.
func SyncReactions(p Platform, guildID, channelID, messageID string, bindings map[string]string) (int, error) {
	emojis := make([]string, 0, len(bindings))
	for e := range bindings {
		emojis = append(emojis, e)
	}
	sort.Strings(emojis)

	granted := 0
	for _, emoji := range emojis {
		after := ""
		for {
			users, err := p.MessageReactions(channelID, messageID, emoji, 100, "", after)
			if err != nil {
				return granted, fmt.Errorf("list reactions %s: %w", emoji, err)
			}
			for _, u := range users {
				if u.Bot {
					continue
				}
				if err := p.GuildMemberRoleAdd(guildID, u.ID, bindings[emoji]); err != nil {
					return granted, err
				}
				granted++
			}
			if len(users) < 100 {
				break
			}
			after = users[len(users)-1].ID
		}
	}
	return granted, nil
}

func display(emoji string) string {
	if name, id, ok := strings.Cut(emoji, ":"); ok {
		return "<:" + name + ":" + id + ">"
	}
	return emoji
}

func init() {
	command.RegisterCommand(&ReactionRoleCommand{}, middleware.Standard()...)
}
