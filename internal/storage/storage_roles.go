package storage

import (
	"sort"
)

type GuildLevelRoles struct {
	Roles map[int]string `json:"roles"` // level -> role id
}

func newGuildLevelRoles() *GuildLevelRoles { return &GuildLevelRoles{Roles: map[int]string{}} }

func (s *Storage) SetLevelRole(guildID string, level int, roleID string) error {
	return update(s, DocLevelRoles, guildID, newGuildLevelRoles, func(g *GuildLevelRoles) error {
		if g.Roles == nil {
			g.Roles = map[int]string{}
		}
		g.Roles[level] = roleID
		return nil
	})
}

func (s *Storage) RemoveLevelRole(guildID string, level int) error {
	return update(s, DocLevelRoles, guildID, newGuildLevelRoles, func(g *GuildLevelRoles) error {
		if _, ok := g.Roles[level]; !ok {
			return ErrNotFound
		}
		delete(g.Roles, level)
		return nil
	})
}

type LevelRole struct {
	Level  int
	RoleID string
}

// LevelRoles returns the guild's level roles, lowest level first.
func (s *Storage) LevelRoles(guildID string) ([]LevelRole, error) {
	var out []LevelRole
	err := view(s, DocLevelRoles, guildID, newGuildLevelRoles, func(g *GuildLevelRoles) {
		for lvl, id := range g.Roles {
			out = append(out, LevelRole{Level: lvl, RoleID: id})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, err
}

type GuildReactionRoles struct {
	Messages map[string]map[string]string `json:"messages"` // message id -> emoji -> role id
}

func newGuildReactionRoles() *GuildReactionRoles {
	return &GuildReactionRoles{Messages: map[string]map[string]string{}}
}

func (s *Storage) SetReactionRole(guildID, messageID, emoji, roleID string) error {
	return update(s, DocReactionRoles, guildID, newGuildReactionRoles, func(g *GuildReactionRoles) error {
		if g.Messages == nil {
			g.Messages = map[string]map[string]string{}
		}
		if g.Messages[messageID] == nil {
			g.Messages[messageID] = map[string]string{}
		}
		g.Messages[messageID][emoji] = roleID
		return nil
	})
}

// ReactionRole resolves the role bound to a reaction on a message.
func (s *Storage) ReactionRole(guildID, messageID, emoji string) (string, bool) {
	var id string
	var ok bool
	_ = view(s, DocReactionRoles, guildID, newGuildReactionRoles, func(g *GuildReactionRoles) {
		id, ok = g.Messages[messageID][emoji]
	})
	return id, ok
}

// ReactionRoles returns a copy of every binding of the guild.
func (s *Storage) ReactionRoles(guildID string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	err := view(s, DocReactionRoles, guildID, newGuildReactionRoles, func(g *GuildReactionRoles) {
		for msg, m := range g.Messages {
			out[msg] = map[string]string{}
			for e, r := range m {
				out[msg][e] = r
			}
		}
	})
	return out, err
}

type GuildAutoRoles struct {
	Roles []string `json:"roles"`
}

func newGuildAutoRoles() *GuildAutoRoles { return &GuildAutoRoles{Roles: []string{}} }

// AddAutoRole reports false when the role was already present.
func (s *Storage) AddAutoRole(guildID, roleID string) (bool, error) {
	added := false
	err := update(s, DocAutoRoles, guildID, newGuildAutoRoles, func(g *GuildAutoRoles) error {
		for _, r := range g.Roles {
			if r == roleID {
				return nil
			}
		}
		g.Roles = append(g.Roles, roleID)
		added = true
		return nil
	})
	return added, err
}

func (s *Storage) RemoveAutoRole(guildID, roleID string) error {
	return update(s, DocAutoRoles, guildID, newGuildAutoRoles, func(g *GuildAutoRoles) error {
		for i, r := range g.Roles {
			if r == roleID {
				g.Roles = append(g.Roles[:i], g.Roles[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *Storage) AutoRoles(guildID string) ([]string, error) {
	var out []string
	err := view(s, DocAutoRoles, guildID, newGuildAutoRoles, func(g *GuildAutoRoles) {
		out = append(out, g.Roles...)
	})
	return out, err
}
