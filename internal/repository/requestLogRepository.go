package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
)

type RequestLogRepository struct {
	db *storage.Postgres
}

func NewRequestLogRepository(db *storage.Postgres) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Inserts multiple request logs in one statement
func (r *RequestLogRepository) CreateBatch(ctx context.Context, logs []*models.RequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).CreateInBatches(logs, 200).Error
}

// Aggregates over request_logs in a time range
type RequestLogStats struct {
	Total        int64   `gorm:"column:total"`
	AvgMs        float64 `gorm:"column:avg_ms"`
	P50Ms        float64 `gorm:"column:p50_ms"`
	P95Ms        float64 `gorm:"column:p95_ms"`
	P99Ms        float64 `gorm:"column:p99_ms"`
	ClientErrors int64   `gorm:"column:client_errors"`
	ServerErrors int64   `gorm:"column:server_errors"`
	RateLimited  int64   `gorm:"column:rate_limited"`
}

type KeyCount struct {
	Key   string `json:"key" gorm:"column:key"`
	Count int64  `json:"count" gorm:"column:count"`
}

func (r *RequestLogRepository) Stats(ctx context.Context, from, to time.Time) (RequestLogStats, error) {
	var stats RequestLogStats
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(AVG(response_time_ms), 0) AS avg_ms,
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY response_time_ms), 0) AS p50_ms,
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY response_time_ms), 0) AS p95_ms,
			COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY response_time_ms), 0) AS p99_ms,
			COUNT(*) FILTER (WHERE status_code BETWEEN 400 AND 499) AS client_errors,
			COUNT(*) FILTER (WHERE status_code BETWEEN 500 AND 599) AS server_errors,
			COUNT(*) FILTER (WHERE status_code = 429) AS rate_limited
		FROM request_logs
		WHERE timestamp BETWEEN ? AND ?
	`

	err := r.db.DB.WithContext(ctx).Raw(query, from, to).Scan(&stats).Error
	return stats, err
}

// Returns the most frequent values of column (path or user_id)
func (r *RequestLogRepository) Top(ctx context.Context, column string, from, to time.Time, limit int) ([]KeyCount, error) {
	switch column {
	case "path", "user_id":
	default:
		return nil, fmt.Errorf("cannot group request logs by %q", column)
	}

	var results []KeyCount
	err := r.db.DB.WithContext(ctx).
		Model(&models.RequestLog{}).
		Select(column+" AS key, COUNT(*) AS count").
		Where("timestamp BETWEEN ? AND ? AND "+column+" <> ''", from, to).
		Group(column).
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

// Deletes logs older than the specified time
func (r *RequestLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.RequestLog{})

	return result.RowsAffected, result.Error
}
