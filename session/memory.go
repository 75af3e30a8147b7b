package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Backend. Records are not evicted by TTL;
// the Manager deletes them when it observes expiry.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Save(_ context.Context, sess *Session, _ time.Duration) error {
	m.mu.Lock()
	m.sessions[sess.SessionID] = *sess
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (m *MemoryStore) Touch(_ context.Context, sessionID string, expected, next int64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.LastAccess != expected {
		return ErrConflict
	}
	sess.LastAccess = next
	m.sessions[sessionID] = sess
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

var _ Backend = (*MemoryStore)(nil)
