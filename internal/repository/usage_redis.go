package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/quota"
	"github.com/aman-churiwal/portfolio-api/internal/storage"
	"github.com/redis/go-redis/v9"
)

const usageKeyPrefix = "usage:"

// KEYS[1] counter hash
// ARGV: tier, used, limit, reset_ms
var ensureScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'tier', ARGV[1], 'used', ARGV[2], 'limit', ARGV[3], 'reset_ms', ARGV[4])
end
return 1
`)

// KEYS[1] counter hash
// ARGV: count, now_ms, next_reset_ms, default tier, default limit,
// default reset_ms, unbounded tier
// Returns {admitted, used, limit, tier, reset_ms}.
var checkAndIncrementScript = redis.NewScript(`
local key = KEYS[1]
local count = tonumber(ARGV[1])
local now = tonumber(ARGV[2])

if redis.call('EXISTS', key) == 0 then
	redis.call('HSET', key, 'tier', ARGV[4], 'used', 0, 'limit', ARGV[5], 'reset_ms', ARGV[6])
end

local fields = redis.call('HMGET', key, 'tier', 'used', 'limit', 'reset_ms')
local tier = fields[1]
local used = tonumber(fields[2])
local limit = tonumber(fields[3])
local reset = tonumber(fields[4])

if now >= reset then
	used = 0
	reset = tonumber(ARGV[3])
	redis.call('HSET', key, 'used', used, 'reset_ms', reset)
end

local admitted = 0
if tier == ARGV[7] or used + count <= limit then
	used = used + count
	admitted = 1
	redis.call('HSET', key, 'used', used)
end

return {admitted, used, limit, tier, reset}
`)

// KEYS[1] counter hash
// ARGV: tier, limit
var setTierScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'tier', ARGV[1], 'limit', ARGV[2])
return 1
`)

// RedisUsageStore keeps one hash per user and runs every mutation as a
// single Lua script, which Redis executes without interleaving.
type RedisUsageStore struct {
	redis *storage.RedisClient
}

func NewRedisUsageStore(redis *storage.RedisClient) *RedisUsageStore {
	return &RedisUsageStore{redis: redis}
}

func usageKey(userID string) string {
	return usageKeyPrefix + userID
}

func (s *RedisUsageStore) Get(ctx context.Context, userID string) (models.UsageCounter, error) {
	fields, err := s.redis.HGetAll(ctx, usageKey(userID))
	if err != nil {
		return models.UsageCounter{}, err
	}
	if len(fields) == 0 {
		return models.UsageCounter{}, quota.ErrCounterNotFound
	}

	used, err := strconv.ParseInt(fields["used"], 10, 64)
	if err != nil {
		return models.UsageCounter{}, fmt.Errorf("parse used for %s: %w", userID, err)
	}
	limit, err := strconv.ParseInt(fields["limit"], 10, 64)
	if err != nil {
		return models.UsageCounter{}, fmt.Errorf("parse limit for %s: %w", userID, err)
	}
	resetMs, err := strconv.ParseInt(fields["reset_ms"], 10, 64)
	if err != nil {
		return models.UsageCounter{}, fmt.Errorf("parse reset for %s: %w", userID, err)
	}

	return models.UsageCounter{
		UserID:     userID,
		Tier:       models.Tier(fields["tier"]),
		Used:       used,
		UsageLimit: limit,
		ResetDate:  time.UnixMilli(resetMs).UTC(),
	}, nil
}

func (s *RedisUsageStore) Ensure(ctx context.Context, counter models.UsageCounter) error {
	_, err := s.redis.RunScript(ctx, ensureScript,
		[]string{usageKey(counter.UserID)},
		string(counter.Tier), counter.Used, counter.UsageLimit, counter.ResetDate.UnixMilli(),
	)
	return err
}

func (s *RedisUsageStore) CheckAndIncrement(ctx context.Context, req quota.CheckRequest) (models.UsageCounter, bool, error) {
	tier := req.Defaults.Tier
	if tier == "" {
		tier = models.TierFree
	}

	raw, err := s.redis.RunScript(ctx, checkAndIncrementScript,
		[]string{usageKey(req.UserID)},
		req.Count,
		req.Now.UnixMilli(),
		quota.NextReset(req.Now).UnixMilli(),
		string(tier),
		req.Defaults.UsageLimit,
		req.Defaults.ResetDate.UnixMilli(),
		string(models.TierPro),
	)
	if err != nil {
		return models.UsageCounter{}, false, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 5 {
		return models.UsageCounter{}, false, fmt.Errorf("unexpected script reply %v", raw)
	}

	admitted, err1 := toInt64(values[0])
	used, err2 := toInt64(values[1])
	limit, err3 := toInt64(values[2])
	resetMs, err4 := toInt64(values[4])
	tierName, _ := values[3].(string)
	for _, e := range []error{err1, err2, err3, err4} {
		if e != nil {
			return models.UsageCounter{}, false, fmt.Errorf("unexpected script reply: %w", e)
		}
	}

	return models.UsageCounter{
		UserID:     req.UserID,
		Tier:       models.Tier(tierName),
		Used:       used,
		UsageLimit: limit,
		ResetDate:  time.UnixMilli(resetMs).UTC(),
	}, admitted == 1, nil
}

func (s *RedisUsageStore) SetTier(ctx context.Context, userID string, tier models.Tier, limit int64) (models.UsageCounter, error) {
	raw, err := s.redis.RunScript(ctx, setTierScript, []string{usageKey(userID)}, string(tier), limit)
	if err != nil {
		return models.UsageCounter{}, err
	}
	if n, _ := toInt64(raw); n == 0 {
		return models.UsageCounter{}, quota.ErrCounterNotFound
	}

	return s.Get(ctx, userID)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}
