package quota

import (
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
)

// NextReset is the start of the calendar month after now, in UTC.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Rollover starts a new period once the reset date has passed. It reports
// whether it changed c.
func Rollover(c *models.UsageCounter, now time.Time) bool {
	if now.Before(c.ResetDate) {
		return false
	}
	c.Used = 0
	c.ResetDate = NextReset(now)
	return true
}

func Admissible(c models.UsageCounter, count int64) bool {
	if c.Tier == models.TierPro {
		return true
	}
	return c.Used+count <= c.UsageLimit
}

// Apply is the read-modify-write every store performs under its own
// atomicity guarantee: roll the period over, evaluate, then increment only
// when admitted.
func Apply(c *models.UsageCounter, req CheckRequest) bool {
	Rollover(c, req.Now)
	if !Admissible(*c, req.Count) {
		return false
	}
	c.Used += req.Count
	return true
}
