package quota

import (
	"context"
	"sync"

	"github.com/aman-churiwal/portfolio-api/internal/models"
)

// MemoryStore is a single-process CounterStore for development and tests.
// It gives no guarantee across instances.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]models.UsageCounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]models.UsageCounter)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (models.UsageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[userID]
	if !ok {
		return models.UsageCounter{}, ErrCounterNotFound
	}
	return c, nil
}

func (m *MemoryStore) Ensure(_ context.Context, counter models.UsageCounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.counters[counter.UserID]; !ok {
		m.counters[counter.UserID] = counter
	}
	return nil
}

func (m *MemoryStore) CheckAndIncrement(_ context.Context, req CheckRequest) (models.UsageCounter, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[req.UserID]
	if !ok {
		c = req.Defaults
	}
	admitted := Apply(&c, req)
	m.counters[req.UserID] = c
	return c, admitted, nil
}

func (m *MemoryStore) SetTier(_ context.Context, userID string, tier models.Tier, limit int64) (models.UsageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[userID]
	if !ok {
		return models.UsageCounter{}, ErrCounterNotFound
	}
	c.Tier = tier
	c.UsageLimit = limit
	m.counters[userID] = c
	return c, nil
}

// Put overwrites a counter; used to seed state.
func (m *MemoryStore) Put(c models.UsageCounter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c.UserID] = c
}
