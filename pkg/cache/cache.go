// Package cache holds fetched upstream content keyed by absolute upstream URL.
//
// Stores are passive: they never evict or expire entries themselves. Freshness
// is decided by the reader, which treats a stale entry as a miss and overwrites
// it with a new Put.
package cache

import (
	"context"
	"sync"
	"time"
)

// Entry is a single cached upstream response. Entries are never modified after
// they are stored; a re-fetch replaces the whole entry.
type Entry struct {
	Payload     []byte
	ContentType string
	StoredAt    time.Time
}

// Fresh reports whether the entry is younger than ttl at the given instant.
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Store maps absolute upstream URLs to entries.
type Store interface {
	// Get returns the entry stored under key, if any.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// Memory is a process-local Store.
type Memory struct {
	mutex   sync.RWMutex
	entries map[string]*Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]*Entry{}}
}

// Get returns the entry stored under key, if any.
func (m *Memory) Get(_ context.Context, key string) (*Entry, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	e, ok := m.entries[key]
	return e, ok
}

// Put stores entry under key, replacing any previous entry.
func (m *Memory) Put(_ context.Context, key string, entry *Entry) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.entries == nil {
		m.entries = map[string]*Entry{}
	}
	m.entries[key] = entry

	return nil
}

// Clear removes every entry.
func (m *Memory) Clear(context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries = map[string]*Entry{}

	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.entries)
}
