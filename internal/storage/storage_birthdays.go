package storage

import (
	"izumi/internal/memory"
)

type GuildBirthdays struct {
	Channel string                     `json:"channel"`
	Users   map[string]memory.Birthday `json:"users"`
}

func newGuildBirthdays() *GuildBirthdays {
	return &GuildBirthdays{Users: map[string]memory.Birthday{}}
}

func (s *Storage) SetBirthday(guildID, userID string, b memory.Birthday) error {
	return update(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) error {
		if g.Users == nil {
			g.Users = map[string]memory.Birthday{}
		}
		g.Users[userID] = b
		return nil
	})
}

func (s *Storage) RemoveBirthday(guildID, userID string) error {
	return update(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) error {
		if _, ok := g.Users[userID]; !ok {
			return ErrNotFound
		}
		delete(g.Users, userID)
		return nil
	})
}

func (s *Storage) GetBirthday(guildID, userID string) (memory.Birthday, bool, error) {
	var b memory.Birthday
	var ok bool
	err := view(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) {
		b, ok = g.Users[userID]
	})
	return b, ok, err
}

// Birthdays returns a copy of the guild's birthday map.
func (s *Storage) Birthdays(guildID string) (map[string]memory.Birthday, error) {
	out := map[string]memory.Birthday{}
	err := view(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) {
		for id, b := range g.Users {
			out[id] = b
		}
	})
	return out, err
}

func (s *Storage) SetBirthdayChannel(guildID, channelID string) error {
	return update(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) error {
		g.Channel = channelID
		return nil
	})
}

// BirthdayChannel returns the announce channel, empty when none is set.
func (s *Storage) BirthdayChannel(guildID string) (string, error) {
	var ch string
	err := view(s, DocBirthdays, guildID, newGuildBirthdays, func(g *GuildBirthdays) {
		ch = g.Channel
	})
	return ch, err
}

type BirthdayNotifications struct {
	Announced map[string]string `json:"announced"` // user id -> YYYY-MM-DD
}

func newBirthdayNotifications() *BirthdayNotifications {
	return &BirthdayNotifications{Announced: map[string]string{}}
}

// MarkAnnounced records that userID was announced on day and reports whether
// this is the first announcement for that day.
func (s *Storage) MarkAnnounced(guildID, userID, day string) (bool, error) {
	first := false
	err := update(s, DocBirthdayNotifications, guildID, newBirthdayNotifications, func(n *BirthdayNotifications) error {
		if n.Announced == nil {
			n.Announced = map[string]string{}
		}
		if n.Announced[userID] == day {
			return nil
		}
		n.Announced[userID] = day
		first = true
		return nil
	})
	return first, err
}
