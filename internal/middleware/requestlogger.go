package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const recorderBatchSize = 100

type RequestLogSink interface {
	CreateBatch(ctx context.Context, logs []*models.RequestLog) error
}

// RequestRecorder queues request logs and writes them in batches from one
// background goroutine. Requests never wait on the database; when the queue
// is full the entry is dropped.
type RequestRecorder struct {
	sink          RequestLogSink
	entries       chan *models.RequestLog
	flushInterval time.Duration
	logger        zerolog.Logger

	// mu guards closed so a late request cannot send on the closed queue.
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewRequestRecorder(sink RequestLogSink, bufferSize int, flushInterval time.Duration, logger zerolog.Logger) *RequestRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	return &RequestRecorder{
		sink:          sink,
		entries:       make(chan *models.RequestLog, bufferSize),
		flushInterval: flushInterval,
		logger:        logger.With().Str("component", "request_recorder").Logger(),
		done:          make(chan struct{}),
	}
}

func (r *RequestRecorder) Start() {
	go r.run()
}

// Stop flushes whatever is queued and waits for the writer to exit. Entries
// from requests still running afterwards are dropped.
func (r *RequestRecorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.entries)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *RequestRecorder) enqueue(entry *models.RequestLog) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Debug().Str("path", entry.Path).Msg("Request recorder stopped, dropping entry")
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn().Msg("Request log queue full, dropping entry")
	}
}

func (r *RequestRecorder) run() {
	defer close(r.done)

	batch := make([]*models.RequestLog, 0, recorderBatchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= recorderBatchSize {
				r.flush(batch)
				batch = make([]*models.RequestLog, 0, recorderBatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = make([]*models.RequestLog, 0, recorderBatchSize)
			}
		}
	}
}

func (r *RequestRecorder) flush(batch []*models.RequestLog) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.sink.CreateBatch(ctx, batch); err != nil {
		r.logger.Error().Err(err).Int("count", len(batch)).Msg("Failed to insert request logs")
	}
}

func (r *RequestRecorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := &models.RequestLog{
			Timestamp:      start.UTC(),
			RequestID:      c.GetString(ContextRequestID),
			UserID:         c.GetString(ContextUserID),
			Method:         c.Request.Method,
			Path:           c.FullPath(),
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}
		if entry.Path == "" {
			entry.Path = c.Request.URL.Path
		}

		r.enqueue(entry)
	}
}
