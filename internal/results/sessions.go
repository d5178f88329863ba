package results

import (
	"sync"
	"time"
)

// Sessions holds the active result Set of each user. A new search replaces
// the user's previous set.
type Sessions struct {
	mu      sync.Mutex
	timeout time.Duration
	now     func() time.Time
	entries map[string]*session
}

type session struct {
	set      *Set
	lastUsed time.Time
}

// Expired describes a set dropped by Sweep.
type Expired struct {
	UserID string
	Set    *Set
}

// NewSessions creates an empty registry whose sets expire after timeout
// without interaction.
func NewSessions(timeout time.Duration) *Sessions {
	return &Sessions{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*session),
	}
}

// Put stores set as the user's active result set.
func (s *Sessions) Put(userID string, set *Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = &session{set: set, lastUsed: s.now()}
}

// Get returns the user's active set.
func (s *Sessions) Get(userID string) (*Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil, false
	}
	return e.set, true
}

// Delete drops the user's active set.
func (s *Sessions) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[userID]; !ok {
		return false
	}
	delete(s.entries, userID)
	return true
}

// DeleteIf drops the user's active set only if it is still set. Used by
// views that may have been replaced by a newer search.
func (s *Sessions) DeleteIf(userID string, set *Set) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || e.set != set {
		return false
	}
	delete(s.entries, userID)
	return true
}

// Touch records interaction with the user's set, postponing its expiry.
func (s *Sessions) Touch(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return false
	}
	e.lastUsed = s.now()
	return true
}

// Sweep removes sets idle for longer than the timeout as of now and returns them.
func (s *Sessions) Sweep(now time.Time) []Expired {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Expired
	for userID, e := range s.entries {
		if now.Sub(e.lastUsed) > s.timeout {
			expired = append(expired, Expired{UserID: userID, Set: e.set})
			delete(s.entries, userID)
		}
	}
	return expired
}

// Len returns the number of active sets.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
