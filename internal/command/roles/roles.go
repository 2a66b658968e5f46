// Package roles binds roles to levels, reactions and member joins.
package roles

import (
	"errors"
	"fmt"
	"strings"

	"izumi/internal/command"
	"izumi/internal/leveling"
	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Platform is the part of the session role commands and events use.
type Platform interface {
	leveling.RoleEditor
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
}

var platformFor = func(r *command.Request) Platform {
	if r.Session == nil {
		return nil
	}
	return r.Session
}

// EmojiKey normalises an emoji as typed or as received in an event to the
// form used for storage: the unicode character, or name:id for custom ones.
func EmojiKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
	s = strings.TrimPrefix(s, "a:")
	return strings.TrimPrefix(s, ":")
}

// SyncMember applies the level roles for a member's stored xp.
func SyncMember(p Platform, store *storage.Storage, guildID, userID string) (leveling.RoleChanges, error) {
	rec, _, err := store.GetXP(guildID, userID)
	if err != nil {
		return leveling.RoleChanges{}, err
	}
	m, err := p.GuildMember(guildID, userID)
	if err != nil {
		return leveling.RoleChanges{}, fmt.Errorf("fetch member: %w", err)
	}
	return leveling.SyncRoles(p, store, guildID, userID, leveling.LevelFor(rec.XP), m.Roles)
}

// OnReaction grants or removes the role bound to a reaction. It reports
// whether the reaction was bound at all.
func OnReaction(p leveling.RoleEditor, store *storage.Storage, guildID, messageID, emoji, userID string, added bool) (bool, error) {
	roleID, ok := store.ReactionRole(guildID, messageID, EmojiKey(emoji))
	if !ok {
		return false, nil
	}
	var err error
	if added {
		err = p.GuildMemberRoleAdd(guildID, userID, roleID)
	} else {
		err = p.GuildMemberRoleRemove(guildID, userID, roleID)
	}
	if err != nil {
		return true, fmt.Errorf("reaction role %s: %w", roleID, err)
	}
	return true, nil
}

// OnMemberJoin hands out the guild's auto roles. One failing role does not
// stop the others.
func OnMemberJoin(p leveling.RoleEditor, store *storage.Storage, guildID, userID string) error {
	ids, err := store.AutoRoles(guildID)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := p.GuildMemberRoleAdd(guildID, userID, id); err != nil {
			errs = append(errs, fmt.Errorf("auto role %s: %w", id, err))
			continue
		}
		log.WithFields(log.Fields{"guild": guildID, "user": userID}).Debugf("[CMD] auto role %s", id)
	}
	return errors.Join(errs...)
}

func roleMention(id string) string { return "<@&" + id + ">" }

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func opt(t discordgo.ApplicationCommandOptionType, name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: t, Name: name, Description: desc, Required: required}
}
