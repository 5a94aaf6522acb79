package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	b := New(cfg, zerolog.Nop())
	b.now = func() time.Time { return clock }
	return b, &clock
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "parcel", MaxFailures: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 2})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.NoError(t, b.Execute(ctx, succeed))
	_ = b.Execute(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(Config{MaxFailures: 1, Timeout: 30 * time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	*clock = clock.Add(31 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State(), "a failed probe re-opens")

	*clock = clock.Add(31 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(Config{MaxFailures: 1, Timeout: time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	*clock = clock.Add(2 * time.Second)

	err := b.Execute(ctx, func(ctx context.Context) error {
		assert.Equal(t, StateHalfOpen, b.State())
		assert.ErrorIs(t, b.Execute(ctx, succeed), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	notFound := errors.New("not found")
	b, _ := newTestBreaker(Config{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, notFound) },
	})

	assert.ErrorIs(t, b.Execute(context.Background(), func(context.Context) error { return notFound }), notFound)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancelledContext(t *testing.T) {
	b, _ := newTestBreaker(Config{MaxFailures: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Execute(ctx, succeed), context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(Config{Name: "parcel", MaxFailures: 1, Timeout: time.Hour})

	_ = b.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Execute(context.Background(), succeed))
	assert.Equal(t, "parcel", b.Name())
}
