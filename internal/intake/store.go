package intake

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an idle session survives before the store
// forgets it.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore owns session lifecycle. All operations are atomic at
// single-session granularity; serialization of concurrent turns for the same
// session id is the orchestrator's job.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	// Get returns the live session for id, or nil without error when the id
	// is unseen or expired. Read-only callers use this so lookups never
	// materialize sessions.
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}

// MemoryStore keeps sessions in process memory with TTL-based expiry. It is
// the default store for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewMemoryStore returns an in-memory store. ttl <= 0 uses the default.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// GetOrCreate returns the live session for id, or a fresh one if the id is
// unseen or its session expired.
func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if time.Since(sess.UpdatedAt) < s.ttl {
			return cloneSession(sess), nil
		}
		delete(s.sessions, id)
	}
	sess := NewSession(id)
	s.sessions[id] = cloneSession(sess)
	return sess, nil
}

// Get returns a copy of the live session for id, or nil when absent/expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || time.Since(sess.UpdatedAt) >= s.ttl {
		return nil, nil
	}
	return cloneSession(sess), nil
}

// Save stores a copy of the session.
func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// cloneSession copies a session so callers never share mutable state with the
// store's map.
func cloneSession(in *Session) *Session {
	out := *in
	out.Slots = make(map[string]string, len(in.Slots))
	for k, v := range in.Slots {
		out.Slots[k] = v
	}
	out.History = append([]string(nil), in.History...)
	return &out
}
