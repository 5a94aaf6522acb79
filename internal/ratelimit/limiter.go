package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Limiter bounds request bursts per (identifier, endpoint) ahead of the
// quota gate.
type Limiter struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewLimiter(store Store, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

func Key(identifier, endpoint string) string {
	return identifier + ":" + endpoint
}

func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, cfg Config) (Result, error) {
	if !cfg.valid() || identifier == "" || endpoint == "" {
		return Result{}, ErrInvalidConfig
	}
	return l.store.Take(ctx, Key(identifier, endpoint), cfg, l.now())
}

// Rejection is the 429 (or 503 when the store failed) a route writes when
// it must not proceed.
type Rejection struct {
	Status     int               `json:"-"`
	RetryAfter int64             `json:"-"`
	Headers    map[string]string `json:"-"`
	Body       RejectionBody     `json:"body"`
}

type RejectionBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Limit      int    `json:"limit,omitempty"`
	Remaining  int    `json:"remaining"`
	ResetTime  int64  `json:"reset_time,omitempty"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

// Enforce returns nil when the caller should proceed.
func (l *Limiter) Enforce(ctx context.Context, identifier, endpoint string, cfg Config) *Rejection {
	_, rejection := l.Evaluate(ctx, identifier, endpoint, cfg)
	return rejection
}

// Evaluate is Enforce that also hands back the result so callers can set
// rate limit headers on admitted requests.
func (l *Limiter) Evaluate(ctx context.Context, identifier, endpoint string, cfg Config) (Result, *Rejection) {
	result, err := l.Check(ctx, identifier, endpoint, cfg)
	if err != nil {
		l.logger.Error().Err(err).
			Str("identifier", identifier).
			Str("endpoint", endpoint).
			Msg("Rate limit check failed")

		return result, &Rejection{
			Status:  http.StatusServiceUnavailable,
			Headers: map[string]string{},
			Body: RejectionBody{
				Error:   "Rate limit check failed",
				Message: "Failed to process request",
			},
		}
	}

	if result.Success {
		return result, nil
	}

	retryAfter := result.ResetTime - l.now().Unix()
	if retryAfter < 0 {
		retryAfter = 0
	}

	l.logger.Debug().
		Str("identifier", identifier).
		Str("endpoint", endpoint).
		Int64("retry_after", retryAfter).
		Msg("Rate limit exceeded")

	headers := Headers(result)
	headers["Retry-After"] = strconv.FormatInt(retryAfter, 10)

	return result, &Rejection{
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Headers:    headers,
		Body: RejectionBody{
			Error:      "Rate limit exceeded",
			Message:    "Too many requests. Try again in " + strconv.FormatInt(retryAfter, 10) + " seconds.",
			Limit:      result.Limit,
			Remaining:  0,
			ResetTime:  result.ResetTime,
			RetryAfter: retryAfter,
		},
	}
}

func Headers(result Result) map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(result.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(result.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(result.ResetTime, 10),
	}
}
