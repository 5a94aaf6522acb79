package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Config struct {
	Name        string
	MaxFailures int           // consecutive failures before opening, default 5
	Timeout     time.Duration // how long to stay open, default 30s

	// IsFailure decides which errors count against the upstream. Defaults to
	// every non-nil error except context cancellation by the caller.
	IsFailure func(error) bool
}

// Breaker guards calls to one upstream. While open it fails fast with
// ErrCircuitOpen. After Timeout a single probe call is let through; its
// outcome closes or re-opens the circuit.
type Breaker struct {
	name        string
	maxFailures int
	timeout     time.Duration
	isFailure   func(error) bool
	now         func() time.Time
	logger      zerolog.Logger

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

func New(cfg Config, logger zerolog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}

	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		timeout:     cfg.Timeout,
		isFailure:   cfg.IsFailure,
		now:         time.Now,
		logger:      logger.With().Str("component", "circuitbreaker").Str("upstream", cfg.Name).Logger(),
		state:       StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Execute runs fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return true, nil
	default:
		if b.probeInFlight {
			return false, ErrCircuitOpen
		}
		b.probeInFlight = true
		return true, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probeInFlight = false
	}

	if err != nil && b.isFailure(err) {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.logger.Warn().
		Str("from", b.state.String()).
		Str("to", to.String()).
		Int("failures", b.failures).
		Msg("Circuit breaker state change")
	b.state = to
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit regardless of recent failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probeInFlight = false
	b.transition(StateClosed)
}

func (b *Breaker) Name() string {
	return b.name
}
