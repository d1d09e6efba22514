package session

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Store persists one session per client id. Save and Delete write the
// token/role pair as a single record.
type Store interface {
	Load(ctx context.Context, clientID string) (Session, error)
	Save(ctx context.Context, clientID string, s Session) error
	Delete(ctx context.Context, clientID string) error
	All(ctx context.Context) (map[string]Session, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

func (m *MemoryStore) Load(_ context.Context, clientID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[clientID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return fromRecord(r), nil
}

func (m *MemoryStore) Save(_ context.Context, clientID string, s Session) error {
	if !s.Authenticated() {
		return ErrIncompleteSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[clientID] = s.record()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, clientID)
	return nil
}

func (m *MemoryStore) All(_ context.Context) (map[string]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Session, len(m.records))
	for id, r := range m.records {
		out[id] = fromRecord(r)
	}
	return out, nil
}
