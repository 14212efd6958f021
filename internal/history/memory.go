package history

import (
	"context"
	"sync"

	"quiz-feedback/internal/models"
)

type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string][]models.Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string][]models.Attempt)}
}

func (m *MemoryStore) Record(_ context.Context, attempt models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attempt.SessionID] = append(m.attempts[attempt.SessionID], attempt)
	return nil
}

// List returns a copy of the session's attempts in the order they were recorded.
func (m *MemoryStore) List(_ context.Context, sessionID string) ([]models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.attempts[sessionID]
	out := make([]models.Attempt, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
