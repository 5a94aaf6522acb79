package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/repository"
)

type RequestLogReader interface {
	Stats(ctx context.Context, from, to time.Time) (repository.RequestLogStats, error)
	Top(ctx context.Context, column string, from, to time.Time, limit int) ([]repository.KeyCount, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Holds analytics summary data
type AnalyticsSummary struct {
	From            time.Time             `json:"from"`
	To              time.Time             `json:"to"`
	TotalRequests   int64                 `json:"total_requests"`
	AvgResponseTime float64               `json:"avg_response_time_ms"`
	P50ResponseTime float64               `json:"p50_response_time_ms"`
	P95ResponseTime float64               `json:"p95_response_time_ms"`
	P99ResponseTime float64               `json:"p99_response_time_ms"`
	ErrorRate       float64               `json:"error_rate"`
	ClientErrorRate float64               `json:"client_error_rate"`
	ServerErrorRate float64               `json:"server_error_rate"`
	RateLimitedRate float64               `json:"rate_limited_rate"`
	TopEndpoints    []repository.KeyCount `json:"top_endpoints"`
	TopUsers        []repository.KeyCount `json:"top_users"`
}

// AnalyticsService reports on the request log for operators.
type AnalyticsService struct {
	logs RequestLogReader
}

func NewAnalyticsService(logs RequestLogReader) *AnalyticsService {
	return &AnalyticsService{logs: logs}
}

func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidInput)
	}

	summary := &AnalyticsSummary{
		From:         from,
		To:           to,
		TopEndpoints: []repository.KeyCount{},
		TopUsers:     []repository.KeyCount{},
	}

	stats, err := s.logs.Stats(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate request logs: %w", err)
	}
	summary.TotalRequests = stats.Total

	if stats.Total == 0 {
		return summary, nil
	}

	summary.AvgResponseTime = stats.AvgMs
	summary.P50ResponseTime = stats.P50Ms
	summary.P95ResponseTime = stats.P95Ms
	summary.P99ResponseTime = stats.P99Ms

	total := float64(stats.Total)
	summary.ClientErrorRate = float64(stats.ClientErrors) / total * 100
	summary.ServerErrorRate = float64(stats.ServerErrors) / total * 100
	summary.ErrorRate = summary.ClientErrorRate + summary.ServerErrorRate
	summary.RateLimitedRate = float64(stats.RateLimited) / total * 100

	if summary.TopEndpoints, err = s.logs.Top(ctx, "path", from, to, 10); err != nil {
		return nil, fmt.Errorf("failed to rank endpoints: %w", err)
	}
	if summary.TopUsers, err = s.logs.Top(ctx, "user_id", from, to, 10); err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}

	return summary, nil
}

// Deletes logs older than the retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("%w: retention must be at least one day", ErrInvalidInput)
	}
	cutOff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.logs.DeleteBefore(ctx, cutOff)
}
