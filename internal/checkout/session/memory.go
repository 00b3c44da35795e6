// Package session provides the checkout.Store implementations: a
// process-local map for tests and single-node deployments, and a Redis
// store for deployments where checkouts must survive load balancing across
// processes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/quickbite/orderflow/internal/checkout"
)

// retentionGrace is how long an expired session stays readable so the
// service can tell the caller "expired" instead of "not found". After the
// grace period "not found" is an acceptable answer.
const retentionGrace = time.Hour

// MemoryStore is a mutex-guarded map keyed by session id. The single mutex
// also serializes concurrent CompareAndSwap calls, which is what makes the
// version check race-free.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]checkout.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]checkout.Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	if time.Now().After(s.ExpiresAt.Add(retentionGrace)) {
		// Long-dead entry; purge lazily on access.
		delete(m.sessions, id)
		return nil, checkout.ErrSessionNotFound
	}
	cp := s
	cp.Items = append([]checkout.LineItem(nil), s.Items...)
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.ID]
	if !ok {
		return checkout.ErrSessionNotFound
	}
	if cur.Version != s.Version {
		return checkout.ErrVersionConflict
	}
	s.Version++
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
