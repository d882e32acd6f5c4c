package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is a scheduled deletion of one stored file.
type Entry struct {
	Area      string
	Name      string
	ExpiresAt time.Time
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	// Save inserts the entry or moves an existing one to the new deadline.
	Save(ctx context.Context, e Entry) error
	// SaveIfAbsent inserts the entry unless one exists for the same file.
	SaveIfAbsent(ctx context.Context, e Entry) (bool, error)
	// SaveIfEarlier inserts the entry or moves an existing one to the new
	// deadline, but never later than it already is.
	SaveIfEarlier(ctx context.Context, e Entry) error
	Delete(ctx context.Context, area, name string) error
	// Due returns the entries expiring at or before now, oldest first.
	Due(ctx context.Context, now time.Time) ([]Entry, error)
}

type key struct {
	area string
	name string
}

// MemoryStore keeps entries in process memory. Entries are lost on restart
// and recovered by Registry.Reconcile.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[key]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[key]time.Time)}
}

func (s *MemoryStore) Save(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key{e.Area, e.Name}] = e.ExpiresAt

	return nil
}

func (s *MemoryStore) SaveIfAbsent(_ context.Context, e Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{e.Area, e.Name}
	if _, ok := s.entries[k]; ok {
		return false, nil
	}
	s.entries[k] = e.ExpiresAt

	return true, nil
}

func (s *MemoryStore) SaveIfEarlier(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{e.Area, e.Name}
	if at, ok := s.entries[k]; ok && !at.After(e.ExpiresAt) {
		return nil
	}
	s.entries[k] = e.ExpiresAt

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, area, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key{area, name})

	return nil
}

func (s *MemoryStore) Due(_ context.Context, now time.Time) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Entry
	for k, at := range s.entries {
		if !at.After(now) {
			due = append(due, Entry{Area: k.area, Name: k.name, ExpiresAt: at})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ExpiresAt.Before(due[j].ExpiresAt)
	})

	return due, nil
}

// Get returns the deadline recorded for a file.
func (s *MemoryStore) Get(area, name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.entries[key{area, name}]

	return at, ok
}

// Len returns the number of tracked files.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
