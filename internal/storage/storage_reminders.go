package storage

import (
	"sort"
	"time"
)

// Reminder is keyed by its uuid in the reminders document.
type Reminder struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	GuildID     string    `json:"guild_id"`
	ChannelID   string    `json:"channel_id"`
	MessageID   string    `json:"message_id,omitempty"` // confirmation message, for reaction opt-in
	Message     string    `json:"message"`
	Created     time.Time `json:"created"`
	TriggerTime time.Time `json:"trigger_time"`
	Subscribers []string  `json:"subscribers"`
}

func newReminder() *Reminder { return &Reminder{Subscribers: []string{}} }

func (s *Storage) PutReminder(r Reminder) error {
	return update(s, DocReminders, r.ID, newReminder, func(dst *Reminder) error {
		*dst = r
		return nil
	})
}

func (s *Storage) GetReminder(id string) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.docs[DocReminders]
	if _, ok := ds.Get(id); !ok {
		return Reminder{}, false
	}
	r, err := getOrCreate(ds, id, newReminder)
	if err != nil {
		return Reminder{}, false
	}
	return *r, true
}

func (s *Storage) DeleteReminder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[DocReminders].Delete(id)
}

// EditReminder mutates a stored reminder; ErrNotFound when it does not exist.
func (s *Storage) EditReminder(id string, fn func(r *Reminder)) error {
	if _, ok := s.GetReminder(id); !ok {
		return ErrNotFound
	}
	return update(s, DocReminders, id, newReminder, func(r *Reminder) error {
		fn(r)
		return nil
	})
}

// Reminders returns every stored reminder, soonest first.
func (s *Storage) Reminders() []Reminder {
	var out []Reminder
	for _, id := range s.docs[DocReminders].Keys() {
		if r, ok := s.GetReminder(id); ok {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerTime.Before(out[j].TriggerTime) })
	return out
}
