package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count         int
	windowResetAt time.Time
}

// MemoryStore keeps windows in process memory. State is neither durable nor
// shared between instances; use RedisStore when running more than one.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]*record
	sweepEvery time.Duration
	nextSweep  time.Time
}

// sweepEvery bounds how often Take scans for expired windows. Zero scans on
// every call.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]*record),
		sweepEvery: sweepEvery,
	}
}

func (m *MemoryStore) Take(_ context.Context, key string, cfg Config, now time.Time) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	rec, ok := m.records[key]
	if !ok || !now.Before(rec.windowResetAt) {
		rec = &record{count: 1, windowResetAt: now.Add(cfg.Window)}
		m.records[key] = rec
		return Result{
			Success:   true,
			Limit:     cfg.MaxRequests,
			Remaining: remaining(cfg.MaxRequests, rec.count),
			ResetTime: epochSeconds(rec.windowResetAt),
		}, nil
	}

	if rec.count >= cfg.MaxRequests {
		return Result{
			Success:   false,
			Limit:     cfg.MaxRequests,
			Remaining: 0,
			ResetTime: epochSeconds(rec.windowResetAt),
		}, nil
	}

	rec.count++
	return Result{
		Success:   true,
		Limit:     cfg.MaxRequests,
		Remaining: remaining(cfg.MaxRequests, rec.count),
		ResetTime: epochSeconds(rec.windowResetAt),
	}, nil
}

// Len reports how many windows are currently held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Caller holds m.mu.
func (m *MemoryStore) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, rec := range m.records {
		if !now.Before(rec.windowResetAt) {
			delete(m.records, key)
		}
	}
	m.nextSweep = now.Add(m.sweepEvery)
}
