// Package datastore persists small JSON-shaped documents.
//
// A DataStore is a keyed document (one JSON object on disk) kept in memory and
// flushed by an autosave loop. Saves are atomic, skipped when nothing changed,
// verified after write and rotated into a few timestamped backups.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config holds configuration options for the DataStore
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration // 0 disables the autosave loop
	BackupCount      int           // Number of backup files to keep
}

// DefaultConfig returns a default configuration
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
	}
}

type DataStore struct {
	data         map[string]any
	mu           sync.RWMutex
	saveMu       sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	config       *Config
	lastChecksum string
	closed       bool
	closeMu      sync.RWMutex
}

// New creates a new DataStore with default configuration
func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig creates a new DataStore with custom configuration.
// A malformed file on disk is logged and replaced by an empty document.
func NewWithConfig(config *Config) (*DataStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &DataStore{
		data:   make(map[string]any),
		ctx:    ctx,
		cancel: cancel,
		config: config,
	}

	var temp map[string]any
	ok, err := ReadJSON(config.FilePath, &temp)
	if err != nil {
		cancel()
		return nil, err
	}
	if ok && temp != nil {
		store.data = temp
	}
	if !ok {
		if err := WriteFileAtomic(config.FilePath, []byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("create empty document: %w", err)
		}
	}

	if config.AutoSaveInterval > 0 {
		store.wg.Add(1)
		go store.autoSave()
	}
	return store, nil
}

func (ds *DataStore) isClosed() bool {
	ds.closeMu.RLock()
	defer ds.closeMu.RUnlock()
	return ds.closed
}

// Add stores a key-value pair
func (ds *DataStore) Add(key string, value any) {
	if ds.isClosed() {
		return
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.data[key] = value
}

// Get retrieves a value by key
func (ds *DataStore) Get(key string) (any, bool) {
	if ds.isClosed() {
		return nil, false
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	value, exists := ds.data[key]
	return value, exists
}

// Delete removes a key-value pair
func (ds *DataStore) Delete(key string) {
	if ds.isClosed() {
		return
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.data, key)
}

// Keys returns all keys in sorted order.
func (ds *DataStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	keys := make([]string, 0, len(ds.data))
	for k := range ds.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SaveToFile forces an immediate save to disk
func (ds *DataStore) SaveToFile() error {
	if ds.isClosed() {
		return fmt.Errorf("datastore is closed")
	}
	return ds.saveToFile()
}

// Close stops the autosave loop and performs a final save.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	ds.closeMu.Unlock()

	ds.cancel()
	ds.wg.Wait()
	return ds.saveToFile()
}

func (ds *DataStore) saveToFile() error {
	ds.saveMu.Lock()
	defer ds.saveMu.Unlock()

	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	sum := checksum(data)
	if sum == ds.lastChecksum {
		return nil
	}

	if ds.config.BackupCount > 0 {
		if err := backup(ds.config.FilePath, ds.config.BackupCount); err != nil {
			log.Warnf("[STORE] backup %s: %v", ds.config.FilePath, err)
		}
	}
	if err := WriteFileAtomic(ds.config.FilePath, data); err != nil {
		return err
	}
	if err := verifyFile(ds.config.FilePath, sum); err != nil {
		return fmt.Errorf("file verification failed: %w", err)
	}

	ds.lastChecksum = sum
	return nil
}

func verifyFile(path, expected string) error {
	actual, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file for verification: %w", err)
	}
	if checksum(actual) != expected {
		return fmt.Errorf("file checksum mismatch")
	}
	return nil
}

func (ds *DataStore) autoSave() {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.config.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ds.ctx.Done():
			return
		case <-ticker.C:
			if err := ds.saveToFile(); err != nil {
				log.Errorf("[STORE] autosave %s: %v", ds.config.FilePath, err)
			}
		}
	}
}

// Stats returns statistics about the DataStore
func (ds *DataStore) Stats() map[string]any {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return map[string]any{
		"keys":      len(ds.data),
		"file_path": ds.config.FilePath,
		"last_save": ds.lastChecksum != "",
	}
}
