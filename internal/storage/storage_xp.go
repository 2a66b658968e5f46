package storage

import (
	"sort"
	"time"
)

// XPRecord is one member's leveling counters.
type XPRecord struct {
	XP          int   `json:"xp"`
	Level       int   `json:"level"`
	Messages    int   `json:"messages"`
	LastMessage int64 `json:"last_message"` // unix seconds of the last awarded message
	LastActive  int64 `json:"last_active"`  // unix seconds of any message
	Coins       int   `json:"coins"`
	Cards       int   `json:"cards"`
}

type GuildXP struct {
	Users map[string]*XPRecord `json:"users"`
}

func newGuildXP() *GuildXP { return &GuildXP{Users: map[string]*XPRecord{}} }

func (g *GuildXP) user(id string) *XPRecord {
	if g.Users == nil {
		g.Users = map[string]*XPRecord{}
	}
	r, ok := g.Users[id]
	if !ok {
		r = &XPRecord{}
		g.Users[id] = r
	}
	return r
}

// EditXP mutates a member's record, creating it when absent.
func (s *Storage) EditXP(guildID, userID string, fn func(r *XPRecord)) error {
	return update(s, DocXP, guildID, newGuildXP, func(g *GuildXP) error {
		fn(g.user(userID))
		return nil
	})
}

// GetXP returns a copy of a member's record.
func (s *Storage) GetXP(guildID, userID string) (XPRecord, bool, error) {
	var out XPRecord
	var found bool
	err := view(s, DocXP, guildID, newGuildXP, func(g *GuildXP) {
		if r, ok := g.Users[userID]; ok {
			out, found = *r, true
		}
	})
	return out, found, err
}

// ReplaceXP overwrites a guild's records, as done by a full recalculation.
func (s *Storage) ReplaceXP(guildID string, users map[string]XPRecord) error {
	return update(s, DocXP, guildID, newGuildXP, func(g *GuildXP) error {
		for id, r := range users {
			r := r
			if old, ok := g.Users[id]; ok {
				r.Coins, r.Cards = old.Coins, old.Cards
			}
			g.user(id)
			g.Users[id] = &r
		}
		return nil
	})
}

type RankedXP struct {
	UserID string
	XPRecord
}

// Leaderboard returns up to n members by xp, highest first.
func (s *Storage) Leaderboard(guildID string, n int) ([]RankedXP, error) {
	var out []RankedXP
	err := view(s, DocXP, guildID, newGuildXP, func(g *GuildXP) {
		for id, r := range g.Users {
			out = append(out, RankedXP{UserID: id, XPRecord: *r})
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UserID < out[j].UserID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, err
}

// Rank is the 1-based leaderboard position of userID, 0 when unranked.
func (s *Storage) Rank(guildID, userID string) (int, error) {
	all, err := s.Leaderboard(guildID, 0)
	for i, r := range all {
		if r.UserID == userID {
			return i + 1, err
		}
	}
	return 0, err
}

// LastActive is the member's last message time in the guild.
func (s *Storage) LastActive(guildID, userID string) time.Time {
	r, ok, err := s.GetXP(guildID, userID)
	if err != nil || !ok || r.LastActive == 0 {
		return time.Time{}
	}
	return time.Unix(r.LastActive, 0)
}
