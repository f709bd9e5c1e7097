// ABOUTME: In-memory session.Store for tests and single-process deployments
// ABOUTME: Used when database.path is ":memory:"

package store

import (
	"context"
	"sync"
	"time"

	"github.com/2389/folio/internal/session"
)

// MemoryStore is an in-memory session.Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Data // keyed by session ID
	now      func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]session.Data),
		now:      time.Now,
	}
}

// Get retrieves a valid (non-expired) session.
func (m *MemoryStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.sessions[id]
	if !ok || !m.now().Before(d.ExpiresAt) {
		return nil, ErrNotFound
	}
	// Restore builds a fresh value so callers never share state with the map
	return session.Restore(d), nil
}

// Save inserts or replaces a session.
func (m *MemoryStore) Save(ctx context.Context, s *session.Session) error {
	d := s.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[d.ID] = d
	return nil
}

// Delete deletes a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (m *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for id, d := range m.sessions {
		if !now.Before(d.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
