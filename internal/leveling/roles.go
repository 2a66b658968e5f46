package leveling

import (
	"fmt"

	"izumi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// RoleEditor is the part of the platform session that edits member roles.
type RoleEditor interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// RoleChanges is what SyncRoles did to one member.
type RoleChanges struct {
	Added   []string
	Removed []string
}

// PlanRoles works out which level roles a member at level should gain and
// lose. Every role at or below the level is kept, roles above it are dropped.
func PlanRoles(bindings []storage.LevelRole, level int, has []string) RoleChanges {
	held := make(map[string]bool, len(has))
	for _, id := range has {
		held[id] = true
	}
	var c RoleChanges
	for _, b := range bindings {
		switch {
		case b.Level <= level && !held[b.RoleID]:
			c.Added = append(c.Added, b.RoleID)
		case b.Level > level && held[b.RoleID]:
			c.Removed = append(c.Removed, b.RoleID)
		}
	}
	return c
}

// SyncRoles applies PlanRoles for one member.
func SyncRoles(ed RoleEditor, store *storage.Storage, guildID, userID string, level int, has []string) (RoleChanges, error) {
	bindings, err := store.LevelRoles(guildID)
	if err != nil {
		return RoleChanges{}, err
	}
	plan := PlanRoles(bindings, level, has)
	var done RoleChanges
	for _, id := range plan.Added {
		if err := ed.GuildMemberRoleAdd(guildID, userID, id); err != nil {
			return done, fmt.Errorf("add role %s: %w", id, err)
		}
		done.Added = append(done.Added, id)
	}
	for _, id := range plan.Removed {
		if err := ed.GuildMemberRoleRemove(guildID, userID, id); err != nil {
			return done, fmt.Errorf("remove role %s: %w", id, err)
		}
		done.Removed = append(done.Removed, id)
	}
	return done, nil
}
