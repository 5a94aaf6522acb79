package repository

import (
	"context"
	"errors"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PortfolioRepository scopes every query by owner, so a portfolio id from
// another user behaves exactly like a missing one.
type PortfolioRepository struct {
	db *storage.Postgres
}

func NewPortfolioRepository(db *storage.Postgres) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Create(ctx context.Context, portfolio *models.Portfolio) error {
	return r.db.DB.WithContext(ctx).Create(portfolio).Error
}

func (r *PortfolioRepository) FindByID(ctx context.Context, userID string, id uuid.UUID) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := r.db.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&portfolio).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	return &portfolio, err
}

func (r *PortfolioRepository) List(ctx context.Context, userID string) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&portfolios).Error

	return portfolios, err
}

func (r *PortfolioRepository) Update(ctx context.Context, userID string, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.Portfolio{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PortfolioRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	result := r.db.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Portfolio{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
