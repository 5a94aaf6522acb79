package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/rs/zerolog"
)

const failedMessage = "Failed to process request"

var ErrInvalidTier = errors.New("invalid tier")

type Options struct {
	FreeLimit    int64
	StoreTimeout time.Duration
}

// Service is the authoritative gate for billable lookups. Every store
// failure is logged and turned into a denied LimitResult; nothing is
// granted on an ambiguous outcome.
type Service struct {
	store     CounterStore
	freeLimit int64
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(store CounterStore, opts Options, logger zerolog.Logger) *Service {
	if opts.FreeLimit <= 0 {
		opts.FreeLimit = 10
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}

	return &Service{
		store:     store,
		freeLimit: opts.FreeLimit,
		timeout:   opts.StoreTimeout,
		now:       time.Now,
		logger:    logger.With().Str("component", "quota").Logger(),
	}
}

func (s *Service) LimitFor(tier models.Tier) int64 {
	if tier == models.TierPro {
		return UnlimitedSentinel
	}
	return s.freeLimit
}

func (s *Service) defaults(userID string, now time.Time) models.UsageCounter {
	return models.UsageCounter{
		UserID:     userID,
		Tier:       models.TierFree,
		Used:       0,
		UsageLimit: s.freeLimit,
		ResetDate:  NextReset(now),
	}
}

// Provision creates the free-tier counter for a new user. Existing counters
// are left alone.
func (s *Service) Provision(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Ensure(ctx, s.defaults(userID, s.now())); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to provision usage counter")
		return fmt.Errorf("provision usage counter for %s: %w", userID, err)
	}
	return nil
}

// PreviewCheck reports whether count more operations would be admitted,
// without writing anything. It is advisory: a concurrent commit can use up
// the remaining quota before this caller commits.
func (s *Service) PreviewCheck(ctx context.Context, userID string, count int64) LimitResult {
	if count < 0 {
		return s.invalid("count must not be negative")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	counter, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrCounterNotFound):
		counter = s.defaults(userID, now)
	case err != nil:
		s.logger.Error().Err(err).Str("user_id", userID).Int64("count", count).Msg("Usage preview failed")
		return s.denied(failedMessage)
	}

	// Work on a copy so an elapsed period previews as empty.
	Rollover(&counter, now)

	return resultFrom(counter, Admissible(counter, count))
}

// CheckAndIncrement atomically admits and records count operations.
func (s *Service) CheckAndIncrement(ctx context.Context, userID string, count int64) LimitResult {
	if count <= 0 {
		return s.invalid("count must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	counter, admitted, err := s.store.CheckAndIncrement(ctx, CheckRequest{
		UserID:   userID,
		Count:    count,
		Now:      now,
		Defaults: s.defaults(userID, now),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int64("count", count).Msg("Atomic usage check failed")
		return s.denied(failedMessage)
	}

	if !admitted {
		s.logger.Info().
			Str("user_id", userID).
			Int64("used", counter.Used).
			Int64("limit", counter.UsageLimit).
			Int64("requested", count).
			Msg("Usage limit reached")
	}

	return resultFrom(counter, admitted)
}

// Usage is the current state, for display.
func (s *Service) Usage(ctx context.Context, userID string) LimitResult {
	return s.PreviewCheck(ctx, userID, 0)
}

func (s *Service) SetTier(ctx context.Context, userID string, tier models.Tier) (LimitResult, error) {
	if !tier.Valid() {
		return LimitResult{}, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Ensure(ctx, s.defaults(userID, s.now())); err != nil {
		return LimitResult{}, fmt.Errorf("provision usage counter for %s: %w", userID, err)
	}

	counter, err := s.store.SetTier(ctx, userID, tier, s.LimitFor(tier))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("tier", string(tier)).Msg("Failed to change tier")
		return LimitResult{}, fmt.Errorf("set tier for %s: %w", userID, err)
	}

	s.logger.Info().Str("user_id", userID).Str("tier", string(tier)).Msg("Tier changed")
	return resultFrom(counter, Admissible(counter, 0)), nil
}

func (s *Service) denied(msg string) LimitResult {
	return LimitResult{
		CanProceed:   false,
		Remaining:    0,
		ErrorMessage: msg,
	}
}

func (s *Service) invalid(msg string) LimitResult {
	res := s.denied(msg)
	res.InvalidRequest = true
	return res
}

func resultFrom(c models.UsageCounter, canProceed bool) LimitResult {
	res := LimitResult{
		CanProceed:  canProceed,
		CurrentUsed: c.Used,
		Limit:       c.UsageLimit,
		Tier:        c.Tier,
		ResetDate:   c.ResetDate,
	}

	if c.Tier == models.TierPro {
		res.Limit = UnlimitedSentinel
		res.Remaining = UnlimitedSentinel
		return res
	}

	if remaining := c.UsageLimit - c.Used; remaining > 0 {
		res.Remaining = remaining
	}
	return res
}
