package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/repository"
	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

type PortfolioStore interface {
	Create(ctx context.Context, portfolio *models.Portfolio) error
	FindByID(ctx context.Context, userID string, id uuid.UUID) (*models.Portfolio, error)
	List(ctx context.Context, userID string) ([]models.Portfolio, error)
	Update(ctx context.Context, userID string, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type PropertyStore interface {
	UpsertBatch(ctx context.Context, properties []*models.Property) error
	ListByPortfolio(ctx context.Context, userID string, portfolioID uuid.UUID) ([]models.Property, error)
	Delete(ctx context.Context, userID string, portfolioID, id uuid.UUID) error
}

type PortfolioService struct {
	portfolios PortfolioStore
	properties PropertyStore
}

func NewPortfolioService(portfolios PortfolioStore, properties PropertyStore) *PortfolioService {
	return &PortfolioService{
		portfolios: portfolios,
		properties: properties,
	}
}

func (s *PortfolioService) Create(ctx context.Context, userID, name, description string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	portfolio := &models.Portfolio{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.portfolios.Create(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return portfolio, nil
}

func (s *PortfolioService) List(ctx context.Context, userID string) ([]models.Portfolio, error) {
	return s.portfolios.List(ctx, userID)
}

func (s *PortfolioService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Portfolio, error) {
	return s.portfolios.FindByID(ctx, userID, id)
}

// Update changes only the fields that are set.
func (s *PortfolioService) Update(ctx context.Context, userID string, id uuid.UUID, name, description *string) (*models.Portfolio, error) {
	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		updates["name"] = trimmed
	}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}

	if len(updates) > 0 {
		if err := s.portfolios.Update(ctx, userID, id, updates); err != nil {
			return nil, err
		}
	}
	return s.portfolios.FindByID(ctx, userID, id)
}

func (s *PortfolioService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return s.portfolios.Delete(ctx, userID, id)
}

func (s *PortfolioService) ListProperties(ctx context.Context, userID string, portfolioID uuid.UUID) ([]models.Property, error) {
	if _, err := s.portfolios.FindByID(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.properties.ListByPortfolio(ctx, userID, portfolioID)
}

func (s *PortfolioService) DeleteProperty(ctx context.Context, userID string, portfolioID, propertyID uuid.UUID) error {
	return s.properties.Delete(ctx, userID, portfolioID, propertyID)
}

// ensureOwned maps a foreign or missing portfolio to repository.ErrNotFound.
func (s *PortfolioService) ensureOwned(ctx context.Context, userID string, id uuid.UUID) error {
	_, err := s.portfolios.FindByID(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}
	return nil
}
