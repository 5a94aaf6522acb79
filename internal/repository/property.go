package repository

import (
	"context"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type PropertyRepository struct {
	db *storage.Postgres
}

func NewPropertyRepository(db *storage.Postgres) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// Upserts properties by (portfolio_id, state, county, apn). Re-importing a
// parcel refreshes its data instead of duplicating it. Postgres refuses to
// update one row twice in a statement, so the batch is deduplicated first.
func (r *PropertyRepository) UpsertBatch(ctx context.Context, properties []*models.Property) error {
	properties = models.DedupeProperties(properties)
	if len(properties) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "portfolio_id"}, {Name: "state"}, {Name: "county"}, {Name: "apn"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"address", "city", "zip", "owner", "land_use",
				"lot_sqft", "building_sqft", "year_built", "assessed_value",
				"latitude", "longitude", "source", "updated_at",
			}),
		}).
		Create(&properties).Error
}

func (r *PropertyRepository) ListByPortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) ([]models.Property, error) {
	var properties []models.Property
	err := r.db.DB.WithContext(ctx).
		Where("portfolio_id = ? AND user_id = ?", portfolioID, userID).
		Order("created_at ASC").
		Find(&properties).Error

	return properties, err
}

func (r *PropertyRepository) Delete(ctx context.Context, userID string, portfolioID, id uuid.UUID) error {
	result := r.db.DB.WithContext(ctx).
		Where("id = ? AND portfolio_id = ? AND user_id = ?", id, portfolioID, userID).
		Delete(&models.Property{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
