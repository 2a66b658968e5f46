// Package storage keeps the community side documents next to the unified
// memory document: xp, birthdays, warnings, role bindings, reminders, channel
// gating and command usage. Each document is a keyed datastore file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"izumi/datastore"
)

// Document names, also the file names under the data directory.
const (
	DocXP                    = "xp"
	DocBirthdays             = "birthdays"
	DocBirthdayNotifications = "birthday_notifications"
	DocWarnings              = "warnings"
	DocLevelRoles            = "level_roles"
	DocReminders             = "reminders"
	DocReactionRoles         = "reaction_roles"
	DocAutoRoles             = "auto_roles"
	DocAllowedChannels       = "allowed_channels"
	DocAPIUsage              = "api_usage"
)

var docNames = []string{
	DocXP, DocBirthdays, DocBirthdayNotifications, DocWarnings, DocLevelRoles,
	DocReminders, DocReactionRoles, DocAutoRoles, DocAllowedChannels, DocAPIUsage,
}

var ErrNotFound = errors.New("storage: not found")

type Storage struct {
	mu   sync.Mutex
	docs map[string]*datastore.DataStore
}

// New opens every document under dir, creating empty ones as needed.
func New(dir string) (*Storage, error) {
	s := &Storage{docs: make(map[string]*datastore.DataStore, len(docNames))}
	for _, name := range docNames {
		ds, err := datastore.New(filepath.Join(dir, name+".json"))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		s.docs[name] = ds
	}
	return s, nil
}

// Close stops autosave and writes every document.
func (s *Storage) Close() error {
	var errs []error
	for name, ds := range s.docs {
		if err := ds.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Save forces an immediate write of every document.
func (s *Storage) Save() error {
	var errs []error
	for name, ds := range s.docs {
		if err := ds.SaveToFile(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Guilds lists the keys of a document.
func (s *Storage) Guilds(doc string) []string {
	return s.docs[doc].Keys()
}

// getOrCreate decodes a private copy of the record stored under key, or
// returns fresh() when it is absent. Stored values are never mutated in place
// since autosave marshals them concurrently.
func getOrCreate[T any](ds *datastore.DataStore, key string, fresh func() *T) (*T, error) {
	data, exists := ds.Get(key)
	if !exists {
		return fresh(), nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}
	rec := fresh()
	if err := json.Unmarshal(jsonData, rec); err != nil {
		return nil, fmt.Errorf("error unmarshalling record %s: %w", key, err)
	}
	return rec, nil
}

// update runs fn on the record under key and stores it back. fn returning an
// error leaves the document untouched.
func update[T any](s *Storage, doc, key string, fresh func() *T, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds := s.docs[doc]
	rec, err := getOrCreate(ds, key, fresh)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	ds.Add(key, rec)
	return nil
}

// view runs fn on the record under key without storing it.
func view[T any](s *Storage, doc, key string, fresh func() *T, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := getOrCreate(s.docs[doc], key, fresh)
	if err != nil {
		return err
	}
	fn(rec)
	return nil
}
