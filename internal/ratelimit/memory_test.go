package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_WindowBoundary(t *testing.T) {
	store := NewMemoryStore(0)
	cfg := Config{Window: 60 * time.Second, MaxRequests: 3}
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, want := range []int{2, 1, 0} {
		res, err := store.Take(ctx, "u1:search", cfg, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Success, "request %d should pass", i+1)
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, start.Add(cfg.Window).Unix(), res.ResetTime)
	}

	res, err := store.Take(ctx, "u1:search", cfg, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, start.Add(cfg.Window).Unix(), res.ResetTime)

	res, err = store.Take(ctx, "u1:search", cfg, start.Add(cfg.Window))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, start.Add(2*cfg.Window).Unix(), res.ResetTime)
}

func TestMemoryStore_RejectedRequestsDoNotIncrement(t *testing.T) {
	store := NewMemoryStore(0)
	cfg := Config{Window: time.Minute, MaxRequests: 2}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := store.Take(ctx, "k", cfg, now)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, store.records["k"].count)
}

func TestMemoryStore_SeparateKeys(t *testing.T) {
	store := NewMemoryStore(0)
	cfg := Config{Window: time.Minute, MaxRequests: 1}
	now := time.Now()
	ctx := context.Background()

	res, _ := store.Take(ctx, Key("u1", "search"), cfg, now)
	assert.True(t, res.Success)
	res, _ = store.Take(ctx, Key("u1", "search"), cfg, now)
	assert.False(t, res.Success)

	res, _ = store.Take(ctx, Key("u1", "import"), cfg, now)
	assert.True(t, res.Success, "different endpoint has its own window")
	res, _ = store.Take(ctx, Key("u2", "search"), cfg, now)
	assert.True(t, res.Success, "different identifier has its own window")
}

func TestMemoryStore_SweepsExpiredWindows(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	cfg := Config{Window: 10 * time.Second, MaxRequests: 5}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := store.Take(ctx, key, cfg, start)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())

	// Windows expired but the next sweep is not due yet.
	_, _ = store.Take(ctx, "d", cfg, start.Add(30*time.Second))
	assert.Equal(t, 4, store.Len())

	_, _ = store.Take(ctx, "e", cfg, start.Add(2*time.Minute))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ConcurrentTakesNeverOvershoot(t *testing.T) {
	store := NewMemoryStore(0)
	cfg := Config{Window: time.Minute, MaxRequests: 10}
	now := time.Now()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Take(context.Background(), "hot", cfg, now)
			if err == nil && res.Success {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
}

func TestEpochSecondsRoundsUp(t *testing.T) {
	base := time.Unix(100, 0)
	assert.Equal(t, int64(100), epochSeconds(base))
	assert.Equal(t, int64(101), epochSeconds(base.Add(time.Millisecond)))
}
