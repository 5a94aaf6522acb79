package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Returns {allowed, count, pttl}. Rejected requests do not touch the counter.
var fixedWindowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
if count >= max then
  return {0, count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisStore shares fixed windows between instances. Expiry is left to
// Redis key TTLs.
type RedisStore struct {
	redis *storage.RedisClient
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) Take(ctx context.Context, key string, cfg Config, now time.Time) (Result, error) {
	redisKey := fmt.Sprintf("ratelimit:fixed:%s", key)

	raw, err := s.redis.RunScript(ctx, fixedWindowScript, []string{redisKey}, cfg.MaxRequests, cfg.Window.Milliseconds())
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	pttl, _ := values[2].(int64)

	ttl := time.Duration(pttl) * time.Millisecond
	if pttl < 0 {
		ttl = cfg.Window
	}

	return Result{
		Success:   allowed == 1,
		Limit:     cfg.MaxRequests,
		Remaining: remaining(cfg.MaxRequests, int(count)),
		ResetTime: epochSeconds(now.Add(ttl)),
	}, nil
}
