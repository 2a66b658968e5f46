package storage

import (
	"time"

	"github.com/google/uuid"
)

type Warning struct {
	ID          string    `json:"id"`
	ModeratorID string    `json:"moderator_id"`
	Reason      string    `json:"reason"`
	Time        time.Time `json:"time"`
}

type GuildWarnings struct {
	Users map[string][]Warning `json:"users"`
}

func newGuildWarnings() *GuildWarnings { return &GuildWarnings{Users: map[string][]Warning{}} }

// AddWarning stores a warning and returns the member's new warning count.
func (s *Storage) AddWarning(guildID, userID, moderatorID, reason string, at time.Time) (int, error) {
	var n int
	err := update(s, DocWarnings, guildID, newGuildWarnings, func(g *GuildWarnings) error {
		if g.Users == nil {
			g.Users = map[string][]Warning{}
		}
		g.Users[userID] = append(g.Users[userID], Warning{
			ID:          uuid.NewString()[:8],
			ModeratorID: moderatorID,
			Reason:      reason,
			Time:        at,
		})
		n = len(g.Users[userID])
		return nil
	})
	return n, err
}

func (s *Storage) Warnings(guildID, userID string) ([]Warning, error) {
	var out []Warning
	err := view(s, DocWarnings, guildID, newGuildWarnings, func(g *GuildWarnings) {
		out = append(out, g.Users[userID]...)
	})
	return out, err
}

// ClearWarnings removes every warning of a member and returns how many there were.
func (s *Storage) ClearWarnings(guildID, userID string) (int, error) {
	var n int
	err := update(s, DocWarnings, guildID, newGuildWarnings, func(g *GuildWarnings) error {
		n = len(g.Users[userID])
		delete(g.Users, userID)
		return nil
	})
	return n, err
}
