package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Take(context.Context, string, Config, time.Time) (Result, error) {
	return Result{}, errors.New("connection refused")
}

func newTestLimiter(store Store, now time.Time) *Limiter {
	l := NewLimiter(store, zerolog.Nop())
	l.now = func() time.Time { return now }
	return l
}

func TestLimiter_EnforceAllowsThenRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newTestLimiter(NewMemoryStore(0), now)
	cfg := Config{Window: time.Minute, MaxRequests: 2}
	ctx := context.Background()

	assert.Nil(t, l.Enforce(ctx, "user-1", "parcel-search", cfg))
	assert.Nil(t, l.Enforce(ctx, "user-1", "parcel-search", cfg))

	rej := l.Enforce(ctx, "user-1", "parcel-search", cfg)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusTooManyRequests, rej.Status)
	assert.Equal(t, int64(60), rej.RetryAfter)
	assert.Equal(t, "2", rej.Headers["X-RateLimit-Limit"])
	assert.Equal(t, "0", rej.Headers["X-RateLimit-Remaining"])
	assert.Equal(t, "60", rej.Headers["Retry-After"])
	assert.Equal(t, "1772355660", rej.Headers["X-RateLimit-Reset"])
	assert.Equal(t, "Rate limit exceeded", rej.Body.Error)
}

func TestLimiter_EvaluateReturnsResultOnSuccess(t *testing.T) {
	l := newTestLimiter(NewMemoryStore(0), time.Now())

	res, rej := l.Evaluate(context.Background(), "user-1", "autocomplete", Lenient)
	assert.Nil(t, rej)
	assert.True(t, res.Success)
	assert.Equal(t, 100, res.Limit)
	assert.Equal(t, 99, res.Remaining)
}

func TestLimiter_InvalidInput(t *testing.T) {
	l := newTestLimiter(NewMemoryStore(0), time.Now())
	ctx := context.Background()

	_, err := l.Check(ctx, "", "search", Normal)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = l.Check(ctx, "u", "search", Config{Window: 0, MaxRequests: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = l.Check(ctx, "u", "search", Config{Window: time.Second, MaxRequests: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLimiter_StoreFailureIsATypedRejection(t *testing.T) {
	l := newTestLimiter(failingStore{}, time.Now())

	rej := l.Enforce(context.Background(), "u", "search", Strict)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusServiceUnavailable, rej.Status)
	assert.Equal(t, "Failed to process request", rej.Body.Message)
}

func TestPresets(t *testing.T) {
	for name, want := range map[string]int{"strict": 10, "normal": 30, "lenient": 100} {
		cfg, ok := Preset(name)
		require.True(t, ok, name)
		assert.Equal(t, want, cfg.MaxRequests)
		assert.Equal(t, time.Minute, cfg.Window)
	}

	_, ok := Preset("generous")
	assert.False(t, ok)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", nil, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore("redis", nil, time.Minute)
	assert.Error(t, err)

	_, err = NewStore("etcd", nil, time.Minute)
	assert.Error(t, err)
}
