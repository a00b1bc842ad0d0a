package viewer

import (
	"maps"
	"slices"
	"sync"
	"time"

	"facette.io/natsort"
)

const (
	// DefaultMaxAge is how long a snapshot stays visible without a refresh.
	DefaultMaxAge = 3 * time.Second
	// DefaultMaxLen bounds the number of machines kept.
	DefaultMaxLen = 300
)

type storeEntry struct {
	infos   []StateInfo
	updated time.Time
}

// Store keeps the latest snapshot of each machine, keyed by root name.
// Entries expire after maxAge; when full, the least recently updated entry is evicted.
type Store struct {
	mu      sync.Mutex
	maxAge  time.Duration
	maxLen  int
	entries map[string]storeEntry
	now     func() time.Time
}

// NewStore creates a store. Non-positive arguments select the defaults.
func NewStore(maxAge time.Duration, maxLen int) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	return &Store{
		maxAge:  maxAge,
		maxLen:  maxLen,
		entries: make(map[string]storeEntry),
		now:     time.Now,
	}
}

// Put stores a snapshot under its root name.
func (s *Store) Put(infos []StateInfo) error {
	name := Root(infos)
	if name == "" {
		return ErrEmptySnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	if _, exists := s.entries[name]; !exists && len(s.entries) >= s.maxLen {
		s.evictOldestLocked()
	}

	s.entries[name] = storeEntry{infos: infos, updated: now}
	storedMachines.Set(float64(len(s.entries)))

	return nil
}

// Get returns the live snapshot of a machine.
func (s *Store) Get(name string) ([]StateInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, false
	}

	if s.now().Sub(entry.updated) > s.maxAge {
		delete(s.entries, name)
		storedMachines.Set(float64(len(s.entries)))

		return nil, false
	}

	return entry.infos, true
}

// All returns every live snapshot keyed by machine name.
func (s *Store) All() map[string][]StateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())

	all := make(map[string][]StateInfo, len(s.entries))
	for name, entry := range s.entries {
		all[name] = entry.infos
	}

	return all
}

// Names returns the live machine names in natural order.
func (s *Store) Names() []string {
	names := slices.Collect(maps.Keys(s.All()))
	natsort.Sort(names)

	return names
}

// Len returns the number of live snapshots.
func (s *Store) Len() int {
	return len(s.All())
}

func (s *Store) pruneLocked(now time.Time) {
	for name, entry := range s.entries {
		if now.Sub(entry.updated) > s.maxAge {
			delete(s.entries, name)
		}
	}

	storedMachines.Set(float64(len(s.entries)))
}

func (s *Store) evictOldestLocked() {
	var (
		oldest     string
		oldestTime time.Time
	)

	for name, entry := range s.entries {
		if oldest == "" || entry.updated.Before(oldestTime) {
			oldest = name
			oldestTime = entry.updated
		}
	}

	delete(s.entries, oldest)
}
