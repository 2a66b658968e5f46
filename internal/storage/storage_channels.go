package storage

// GuildChannels gates features to channels and command groups per guild.
type GuildChannels struct {
	Allowed        map[string][]string `json:"allowed"` // feature -> channel ids
	DisabledGroups []string            `json:"disabled_groups"`
}

func newGuildChannels() *GuildChannels {
	return &GuildChannels{Allowed: map[string][]string{}, DisabledGroups: []string{}}
}

// AllowChannel reports false when the channel was already allowed.
func (s *Storage) AllowChannel(guildID, feature, channelID string) (bool, error) {
	added := false
	err := update(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) error {
		if g.Allowed == nil {
			g.Allowed = map[string][]string{}
		}
		for _, id := range g.Allowed[feature] {
			if id == channelID {
				return nil
			}
		}
		g.Allowed[feature] = append(g.Allowed[feature], channelID)
		added = true
		return nil
	})
	return added, err
}

func (s *Storage) DisallowChannel(guildID, feature, channelID string) error {
	return update(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) error {
		ids := g.Allowed[feature]
		for i, id := range ids {
			if id == channelID {
				g.Allowed[feature] = append(ids[:i], ids[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *Storage) ClearChannels(guildID, feature string) error {
	return update(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) error {
		delete(g.Allowed, feature)
		return nil
	})
}

func (s *Storage) AllowedChannels(guildID, feature string) ([]string, error) {
	var out []string
	err := view(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) {
		out = append(out, g.Allowed[feature]...)
	})
	return out, err
}

// ChannelAllowed is true when no channel is configured for the feature or
// channelID is one of them.
func (s *Storage) ChannelAllowed(guildID, feature, channelID string) bool {
	ids, err := s.AllowedChannels(guildID, feature)
	if err != nil || len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == channelID {
			return true
		}
	}
	return false
}

func (s *Storage) DisableGroup(guildID, group string) error {
	return update(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) error {
		for _, d := range g.DisabledGroups {
			if d == group {
				return nil
			}
		}
		g.DisabledGroups = append(g.DisabledGroups, group)
		return nil
	})
}

func (s *Storage) EnableGroup(guildID, group string) error {
	return update(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) error {
		updated := make([]string, 0, len(g.DisabledGroups))
		for _, d := range g.DisabledGroups {
			if d != group {
				updated = append(updated, d)
			}
		}
		g.DisabledGroups = updated
		return nil
	})
}

func (s *Storage) IsGroupDisabled(guildID, group string) bool {
	disabled := false
	_ = view(s, DocAllowedChannels, guildID, newGuildChannels, func(g *GuildChannels) {
		for _, d := range g.DisabledGroups {
			if d == group {
				disabled = true
			}
		}
	})
	return disabled
}
