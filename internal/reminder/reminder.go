// Package reminder parses human durations and fires stored reminders on time.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"izumi/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("reminder not found")
	ErrNotOwner = errors.New("only the creator can cancel this reminder")
	ErrTooSoon  = errors.New("reminders must be at least 10 seconds ahead")
	ErrTooFar   = errors.New("reminders can be at most a year ahead")
	ErrTooMany  = errors.New("too many pending reminders")
)

const (
	MinAhead   = 10 * time.Second
	MaxAhead   = Year
	maxPerUser = 25
)

// Notify delivers a due reminder.
type Notify func(ctx context.Context, r storage.Reminder)

// Service keeps one timer per pending reminder.
type Service struct {
	store  *storage.Storage
	notify Notify
	now    func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	ctx    context.Context
}

func NewService(store *storage.Storage, notify Notify) *Service {
	return &Service{store: store, notify: notify, now: time.Now, timers: map[string]*time.Timer{}, ctx: context.Background()}
}

// Start schedules every stored reminder. Overdue ones fire right away.
func (s *Service) Start(ctx context.Context) int {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	all := s.store.Reminders()
	for _, r := range all {
		s.schedule(r)
	}
	log.Infof("[REMIND] restored %d reminder(s)", len(all))
	return len(all)
}

// Stop cancels every timer without deleting reminders.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Create stores and schedules a reminder after d.
func (s *Service) Create(creatorID, guildID, channelID, message string, d time.Duration) (storage.Reminder, error) {
	switch {
	case d < MinAhead:
		return storage.Reminder{}, ErrTooSoon
	case d > MaxAhead:
		return storage.Reminder{}, ErrTooFar
	case len(s.List(creatorID)) >= maxPerUser:
		return storage.Reminder{}, ErrTooMany
	}
	now := s.now()
	r := storage.Reminder{
		ID:          uuid.NewString(),
		CreatorID:   creatorID,
		GuildID:     guildID,
		ChannelID:   channelID,
		Message:     message,
		Created:     now,
		TriggerTime: now.Add(d),
		Subscribers: []string{},
	}
	if err := s.store.PutReminder(r); err != nil {
		return storage.Reminder{}, fmt.Errorf("store reminder: %w", err)
	}
	s.schedule(r)
	return r, nil
}

// AttachMessage remembers the confirmation message so reactions on it subscribe.
func (s *Service) AttachMessage(id, messageID string) error {
	return s.store.EditReminder(id, func(r *storage.Reminder) { r.MessageID = messageID })
}

// Subscribe adds userID to the ping list of the reminder behind messageID.
func (s *Service) Subscribe(messageID, userID string) (bool, error) {
	for _, r := range s.store.Reminders() {
		if r.MessageID != messageID {
			continue
		}
		if r.CreatorID == userID {
			return false, nil
		}
		added := false
		err := s.store.EditReminder(r.ID, func(r *storage.Reminder) {
			for _, id := range r.Subscribers {
				if id == userID {
					return
				}
			}
			r.Subscribers = append(r.Subscribers, userID)
			added = true
		})
		return added, err
	}
	return false, nil
}

// Cancel removes a reminder. Only its creator may cancel it.
func (s *Service) Cancel(id, userID string) error {
	r, ok := s.store.GetReminder(id)
	if !ok {
		for _, cand := range s.List(userID) {
			if len(id) >= 4 && len(cand.ID) >= len(id) && cand.ID[:len(id)] == id {
				r, ok = cand, true
				break
			}
		}
	}
	if !ok {
		return ErrNotFound
	}
	if r.CreatorID != userID {
		return ErrNotOwner
	}
	s.mu.Lock()
	if t, ok := s.timers[r.ID]; ok {
		t.Stop()
		delete(s.timers, r.ID)
	}
	s.mu.Unlock()
	s.store.DeleteReminder(r.ID)
	return nil
}

// List returns the user's pending reminders, soonest first.
func (s *Service) List(userID string) []storage.Reminder {
	var out []storage.Reminder
	for _, r := range s.store.Reminders() {
		if r.CreatorID == userID {
			out = append(out, r)
		}
	}
	return out
}

// Pending is the number of scheduled timers.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Service) schedule(r storage.Reminder) {
	wait := r.TriggerTime.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[r.ID]; ok {
		t.Stop()
	}
	id := r.ID
	s.timers[id] = time.AfterFunc(wait, func() { s.fire(id) })
}

func (s *Service) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	ctx := s.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	r, ok := s.store.GetReminder(id)
	if !ok {
		return
	}
	s.store.DeleteReminder(id)
	log.WithField("reminder", id).Debug("[REMIND] firing")
	s.notify(ctx, r)
}
