package quota

import (
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
)

type StructuredError struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details ErrorDetails `json:"details"`
}

type ErrorDetails struct {
	Tier      models.Tier `json:"tier"`
	Used      int64       `json:"used"`
	Limit     int64       `json:"limit"`
	ResetDate time.Time   `json:"resetDate"`
}

const resetDateLayout = "January 2, 2006"

// CreateLimitExceededResponse renders a rejected LimitResult for clients.
func CreateLimitExceededResponse(r LimitResult) StructuredError {
	message := fmt.Sprintf(
		"You have used %d of %d property lookups this month. Your limit resets on %s.",
		r.CurrentUsed, r.Limit, r.ResetDate.UTC().Format(resetDateLayout),
	)
	if r.Tier == models.TierFree {
		message += " Upgrade to Pro for unlimited lookups."
	}

	return StructuredError{
		Error:   "Usage limit exceeded",
		Message: message,
		Details: ErrorDetails{
			Tier:      r.Tier,
			Used:      r.CurrentUsed,
			Limit:     r.Limit,
			ResetDate: r.ResetDate,
		},
	}
}
