package models

import "time"

// One row per user. Mutated only through the locked check-and-increment
// transaction or an explicit tier change.
type UsageCounter struct {
	UserID     string    `gorm:"primaryKey;type:text" json:"user_id"`
	Tier       Tier      `gorm:"type:text;not null;default:'free'" json:"tier"`
	Used       int64     `gorm:"not null;default:0;check:used >= 0" json:"used"`
	UsageLimit int64     `gorm:"not null" json:"usage_limit"`
	ResetDate  time.Time `gorm:"not null" json:"reset_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}
