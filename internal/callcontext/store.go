package callcontext

import (
	"sync"
	"time"
)

// DefaultTTL is how long a call's context stays available after Put.
const DefaultTTL = 5 * time.Minute

// Store is an in-memory, TTL-bound map from call identifier to Variables.
// It is safe for concurrent use. Lookups and evictions are serialized, so
// a reader never sees an entry that is partially removed.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	vars      Variables
	expiresAt time.Time
	timer     *time.Timer
}

// NewStore creates a store whose entries expire ttl after insertion.
// A non-positive ttl selects DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Put inserts or replaces the variables for callID and restarts its
// expiry timer. Missing fields are filled with their placeholders.
func (s *Store) Put(callID string, vars Variables) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if old, ok := s.entries[callID]; ok {
		old.timer.Stop()
	}

	e := &entry{
		vars:      vars.WithDefaults(),
		expiresAt: s.now().Add(s.ttl),
	}
	e.timer = time.AfterFunc(s.ttl, func() { s.expire(callID, e) })
	s.entries[callID] = e
}

// Get returns a copy of the variables stored for callID, or Defaults when
// the entry is absent or expired.
func (s *Store) Get(callID string) Variables {
	if vars, ok := s.Lookup(callID); ok {
		return vars
	}
	return Defaults()
}

// Lookup is Get that also reports whether a live entry was found.
func (s *Store) Lookup(callID string) (Variables, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[callID]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		// Timer has not run yet; treat as gone.
		e.timer.Stop()
		delete(s.entries, callID)
		return nil, false
	}
	return e.vars.Clone(), true
}

// Delete removes callID. Deleting an absent entry is a no-op.
func (s *Store) Delete(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[callID]; ok {
		e.timer.Stop()
		delete(s.entries, callID)
	}
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops every pending expiry and empties the store. Later calls to
// Put are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
	s.closed = true
}

// expire removes callID only if it still maps to e, so a timer belonging
// to a replaced entry cannot evict its successor.
func (s *Store) expire(callID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[callID]; ok && cur == e {
		delete(s.entries, callID)
	}
}
