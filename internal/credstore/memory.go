package credstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Used in tests and when no Redis is
// configured (single-instance dev mode).
type Memory struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{creds: make(map[string]Credentials)}
}

func (m *Memory) Save(_ context.Context, sessionID string, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[sessionID] = creds
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds, ok := m.creds[sessionID]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, sessionID)
	return nil
}
