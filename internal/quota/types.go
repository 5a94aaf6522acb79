package quota

import (
	"context"
	"errors"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
)

// UnlimitedSentinel stands in for the limit and remaining count of
// unbounded tiers.
const UnlimitedSentinel int64 = 999_999_999

var ErrCounterNotFound = errors.New("usage counter not found")

type LimitResult struct {
	CanProceed   bool        `json:"canProceed"`
	Remaining    int64       `json:"remaining"`
	CurrentUsed  int64       `json:"currentUsed"`
	Limit        int64       `json:"limit"`
	Tier         models.Tier `json:"tier"`
	ResetDate    time.Time   `json:"resetDate"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	// Set when the caller asked for something malformed rather than the
	// store failing.
	InvalidRequest bool `json:"invalidRequest,omitempty"`
}

// Unavailable reports a fail-closed denial caused by the counter store.
func (r LimitResult) Unavailable() bool {
	return r.ErrorMessage != "" && !r.InvalidRequest
}

// CheckRequest asks a store to admit Count operations for UserID at Now.
// Defaults seeds the row when the user has no counter yet.
type CheckRequest struct {
	UserID   string
	Count    int64
	Now      time.Time
	Defaults models.UsageCounter
}

// CounterStore persists usage counters. CheckAndIncrement must run Apply
// against the stored row as one indivisible operation on the store side,
// so that concurrent callers on any number of instances serialize per user.
type CounterStore interface {
	// Returns ErrCounterNotFound when the user has no row.
	Get(ctx context.Context, userID string) (models.UsageCounter, error)

	// Inserts counter unless a row for its user already exists.
	Ensure(ctx context.Context, counter models.UsageCounter) error

	// Returns the counter as it stands after the decision and whether the
	// increment was admitted.
	CheckAndIncrement(ctx context.Context, req CheckRequest) (models.UsageCounter, bool, error)

	SetTier(ctx context.Context, userID string, tier models.Tier, limit int64) (models.UsageCounter, error)
}
