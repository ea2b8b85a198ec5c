package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a session may stay idle before it expires.
const DefaultTTL = 24 * time.Hour

// Session is one issued control-plane session.
type Session struct {
	Token          string    `json:"uuid"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Store handles session lifecycle: issuing tokens, validity checks,
// and expiring idle sessions.
type Store struct {
	sessions map[string]*Session
	ttl      time.Duration
	clock    clockwork.Clock
	mu       sync.RWMutex
}

// NewStore creates a session store. A ttl of 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return NewStoreWithClock(ttl, clockwork.NewRealClock())
}

// NewStoreWithClock creates a session store with an injected clock.
func NewStoreWithClock(ttl time.Duration, clock clockwork.Clock) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// Start issues a new session and returns its token.
func (s *Store) Start() string {
	token := uuid.NewString()
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = &Session{
		Token:          token,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	return token
}

// End removes a session and reports whether it existed. Ending an
// already-ended or unknown token returns false, never an error.
func (s *Store) End(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[token]; !exists {
		return false
	}
	delete(s.sessions, token)
	return true
}

// IsValid reports whether a token identifies a live, unexpired session.
// Expiry is checked passively here; the periodic Sweep reclaims memory.
func (s *Store) IsValid(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[token]
	if !exists {
		return false
	}
	return !s.expired(sess)
}

// Touch refreshes a session's last-accessed time.
func (s *Store) Touch(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[token]; exists {
		sess.LastAccessedAt = s.clock.Now()
	}
}

// Get returns a copy of the session for token, if it exists.
func (s *Store) Get(token string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[token]
	if !exists {
		return Session{}, false
	}
	return *sess, true
}

// List returns a snapshot of all sessions, expired ones included
// until the next sweep.
func (s *Store) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, *sess)
	}
	return result
}

// Count returns the number of stored sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// expired reports whether a session has outlived the idle TTL.
// Callers must hold at least a read lock.
func (s *Store) expired(sess *Session) bool {
	if s.ttl == 0 {
		return false
	}
	return s.clock.Now().Sub(sess.LastAccessedAt) > s.ttl
}
