package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("ratelimit: window, max requests, identifier and endpoint must be set")

// Config is a fixed window: at most MaxRequests per Window.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

func (c Config) valid() bool {
	return c.Window > 0 && c.MaxRequests > 0
}

type Result struct {
	Success   bool  `json:"success"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"` // epoch seconds
}

// Store records requests per key. Implementations must do the
// read-modify-write for a key as one indivisible step.
type Store interface {
	// Counts one request against key and reports the outcome. A key whose
	// count already reached cfg.MaxRequests in the active window is
	// rejected without being incremented.
	Take(ctx context.Context, key string, cfg Config, now time.Time) (Result, error)
}

func remaining(limit, count int) int {
	if r := limit - count; r > 0 {
		return r
	}
	return 0
}

// Rounds up so a client that waits until the reported reset is admitted.
func epochSeconds(t time.Time) int64 {
	ms := t.UnixMilli()
	secs := ms / 1000
	if ms%1000 != 0 {
		secs++
	}
	return secs
}
