package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/storage"
)

func NewStore(backend string, redis *storage.RedisClient, sweepEvery time.Duration) (Store, error) {
	switch backend {
	case "redis":
		if redis == nil {
			return nil, errors.New("redis rate limit backend needs a redis client")
		}
		return NewRedisStore(redis), nil
	case "memory", "":
		return NewMemoryStore(sweepEvery), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend: %s", backend)
	}
}
