package session

import (
	"fmt"
	"sync"

	"github.com/retailops/boardflow/core"
)

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = fmt.Errorf("session not found")

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. It is safe for concurrent access and suited for tests and
// single-process deployments. Reads return clones so callers cannot mutate
// live orchestrator state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Save registers the live session under its id. The orchestrator keeps
// mutating the stored pointer; Get shields readers by cloning.
func (s *InMemoryStore) Save(session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// Get returns a clone of the stored session.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return session.Clone(), nil
}

// List returns clones of all stored sessions.
func (s *InMemoryStore) List() []*core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Clone())
	}
	return out
}
