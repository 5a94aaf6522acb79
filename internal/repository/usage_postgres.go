package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepository is the Postgres quota.CounterStore. Check-and-increment
// holds a row lock for the whole read-modify-write, so concurrent callers
// for one user serialize in the database regardless of which instance
// serves them.
type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Get(ctx context.Context, userID string) (models.UsageCounter, error) {
	var counter models.UsageCounter
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&counter).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UsageCounter{}, quota.ErrCounterNotFound
	}

	return counter, err
}

func (r *UsageRepository) Ensure(ctx context.Context, counter models.UsageCounter) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&counter).Error
}

func (r *UsageRepository) CheckAndIncrement(ctx context.Context, req quota.CheckRequest) (models.UsageCounter, bool, error) {
	var (
		counter  models.UsageCounter
		admitted bool
	)

	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := lockCounter(tx, req.UserID, &counter)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			defaults := req.Defaults
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
				return fmt.Errorf("create usage counter: %w", err)
			}
			err = lockCounter(tx, req.UserID, &counter)
		}
		if err != nil {
			return fmt.Errorf("lock usage counter: %w", err)
		}

		before := counter
		admitted = quota.Apply(&counter, req)

		if counter.Used == before.Used && counter.ResetDate.Equal(before.ResetDate) {
			return nil
		}

		return tx.Model(&models.UsageCounter{}).
			Where("user_id = ?", req.UserID).
			Updates(map[string]interface{}{
				"used":       counter.Used,
				"reset_date": counter.ResetDate,
				"updated_at": req.Now,
			}).Error
	})

	if err != nil {
		return models.UsageCounter{}, false, err
	}

	return counter, admitted, nil
}

func (r *UsageRepository) SetTier(ctx context.Context, userID string, tier models.Tier, limit int64) (models.UsageCounter, error) {
	var counter models.UsageCounter

	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockCounter(tx, userID, &counter); err != nil {
			return err
		}

		counter.Tier = tier
		counter.UsageLimit = limit
		return tx.Model(&models.UsageCounter{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"tier":        tier,
				"usage_limit": limit,
			}).Error
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UsageCounter{}, quota.ErrCounterNotFound
	}

	return counter, err
}

// SELECT ... FOR UPDATE on the user's row
func lockCounter(tx *gorm.DB, userID string, counter *models.UsageCounter) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(counter).Error
}
