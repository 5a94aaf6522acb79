package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/parcel"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxImportBatch caps the APNs a single import may charge for.
const MaxImportBatch = 50

var (
	ErrQuotaExceeded    = errors.New("usage limit exceeded")
	ErrQuotaUnavailable = errors.New("usage check unavailable")
)

// QuotaError carries the gate's result so callers can render it.
type QuotaError struct {
	Result quota.LimitResult
}

func (e *QuotaError) Error() string {
	if e.Result.InvalidRequest {
		return ErrInvalidInput.Error() + ": " + e.Result.ErrorMessage
	}
	if e.Result.ErrorMessage != "" {
		return ErrQuotaUnavailable.Error() + ": " + e.Result.ErrorMessage
	}
	return ErrQuotaExceeded.Error()
}

func (e *QuotaError) Unwrap() error {
	if e.Result.InvalidRequest {
		return ErrInvalidInput
	}
	if e.Result.ErrorMessage != "" {
		return ErrQuotaUnavailable
	}
	return ErrQuotaExceeded
}

type QuotaGate interface {
	PreviewCheck(ctx context.Context, userID string, count int64) quota.LimitResult
	CheckAndIncrement(ctx context.Context, userID string, count int64) quota.LimitResult
}

type ParcelLookup interface {
	SearchByAPN(ctx context.Context, q parcel.APNQuery) ([]parcel.Parcel, error)
	SearchByAddress(ctx context.Context, address string) ([]parcel.Parcel, error)
}

// LookupRequest is either a list of APNs or a single address.
type LookupRequest struct {
	APNs    []parcel.APNQuery
	Address string
}

func (r LookupRequest) normalize() (LookupRequest, error) {
	r.Address = strings.TrimSpace(r.Address)

	seen := make(map[string]bool, len(r.APNs))
	apns := make([]parcel.APNQuery, 0, len(r.APNs))
	for _, q := range r.APNs {
		q.APN = strings.TrimSpace(q.APN)
		if q.APN == "" {
			continue
		}
		key := strings.ToLower(q.State + "/" + q.County + "/" + q.APN)
		if seen[key] {
			continue
		}
		seen[key] = true
		apns = append(apns, q)
	}
	r.APNs = apns

	switch {
	case len(r.APNs) == 0 && r.Address == "":
		return r, fmt.Errorf("%w: apns or address is required", ErrInvalidInput)
	case len(r.APNs) > 0 && r.Address != "":
		return r, fmt.Errorf("%w: use either apns or address, not both", ErrInvalidInput)
	case len(r.APNs) > MaxImportBatch:
		return r, fmt.Errorf("%w: at most %d apns per request", ErrInvalidInput, MaxImportBatch)
	}
	return r, nil
}

// Billable lookups this request represents.
func (r LookupRequest) count() int64 {
	if r.Address != "" {
		return 1
	}
	return int64(len(r.APNs))
}

type SearchResult struct {
	Parcels []parcel.Parcel   `json:"parcels"`
	Usage   quota.LimitResult `json:"usage"`
}

type ImportResult struct {
	Imported []models.Property `json:"imported"`
	NotFound []string          `json:"not_found"`
	Failed   []string          `json:"failed"`
	Usage    quota.LimitResult `json:"usage"`
}

// LookupService runs parcel lookups behind the usage quota. Search only
// previews the quota; Import charges it before any provider call and does
// not refund when the provider fails afterwards.
type LookupService struct {
	quota      QuotaGate
	parcels    ParcelLookup
	portfolios *PortfolioService
	properties PropertyStore
	logger     zerolog.Logger
}

func NewLookupService(gate QuotaGate, parcels ParcelLookup, portfolios *PortfolioService, properties PropertyStore, logger zerolog.Logger) *LookupService {
	return &LookupService{
		quota:      gate,
		parcels:    parcels,
		portfolios: portfolios,
		properties: properties,
		logger:     logger.With().Str("component", "lookup").Logger(),
	}
}

func (s *LookupService) Search(ctx context.Context, userID string, req LookupRequest) (*SearchResult, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	usage := s.quota.PreviewCheck(ctx, userID, req.count())
	if !usage.CanProceed {
		return nil, &QuotaError{Result: usage}
	}

	var parcels []parcel.Parcel
	if req.Address != "" {
		parcels, err = s.parcels.SearchByAddress(ctx, req.Address)
	} else {
		for _, q := range req.APNs {
			found, lookupErr := s.parcels.SearchByAPN(ctx, q)
			if errors.Is(lookupErr, parcel.ErrNotFound) {
				continue
			}
			if lookupErr != nil {
				err = lookupErr
				break
			}
			parcels = append(parcels, found...)
		}
		if err == nil && len(parcels) == 0 {
			err = parcel.ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}

	return &SearchResult{Parcels: parcels, Usage: usage}, nil
}

func (s *LookupService) Import(ctx context.Context, userID string, portfolioID uuid.UUID, req LookupRequest) (*ImportResult, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}

	// Ownership first so a bad id never costs quota.
	if err := s.portfolios.ensureOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	usage := s.quota.CheckAndIncrement(ctx, userID, req.count())
	if !usage.CanProceed {
		return nil, &QuotaError{Result: usage}
	}

	result := &ImportResult{
		Imported: []models.Property{},
		NotFound: []string{},
		Failed:   []string{},
		Usage:    usage,
	}

	var (
		found    []*models.Property
		firstErr error
	)

	if req.Address != "" {
		parcels, err := s.parcels.SearchByAddress(ctx, req.Address)
		switch {
		case errors.Is(err, parcel.ErrNotFound):
			result.NotFound = append(result.NotFound, req.Address)
		case err != nil:
			return nil, err
		}
		for _, p := range parcels {
			found = append(found, toProperty(p, userID, portfolioID, "address"))
		}
	} else {
		for _, q := range req.APNs {
			parcels, err := s.parcels.SearchByAPN(ctx, q)
			switch {
			case errors.Is(err, parcel.ErrNotFound):
				result.NotFound = append(result.NotFound, q.APN)
				continue
			case err != nil:
				if firstErr == nil {
					firstErr = err
				}
				result.Failed = append(result.Failed, q.APN)
				continue
			}
			for _, p := range parcels {
				found = append(found, toProperty(p, userID, portfolioID, "apn"))
			}
		}
	}

	if len(found) == 0 && len(result.NotFound) == 0 && firstErr != nil {
		return nil, firstErr
	}

	if firstErr != nil {
		s.logger.Warn().Err(firstErr).
			Str("user_id", userID).
			Int("failed", len(result.Failed)).
			Msg("Import completed partially")
	}

	// Two queries, or one address search, can resolve to the same parcel.
	found = models.DedupeProperties(found)

	if err := s.properties.UpsertBatch(ctx, found); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("portfolio_id", portfolioID.String()).Msg("Failed to save imported properties")
		return nil, fmt.Errorf("failed to save properties: %w", err)
	}

	for _, p := range found {
		result.Imported = append(result.Imported, *p)
	}
	return result, nil
}

func toProperty(p parcel.Parcel, userID string, portfolioID uuid.UUID, source string) *models.Property {
	return &models.Property{
		PortfolioID:   portfolioID,
		UserID:        userID,
		APN:           p.APN,
		Address:       p.Address,
		City:          p.City,
		County:        p.County,
		State:         p.State,
		Zip:           p.Zip,
		Owner:         p.Owner,
		LandUse:       p.LandUse,
		LotSqft:       p.LotSqft,
		BuildingSqft:  p.BuildingSqft,
		YearBuilt:     p.YearBuilt,
		AssessedValue: p.AssessedValue,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Source:        source,
	}
}
