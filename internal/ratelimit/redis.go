package ratelimit

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// slidingWindow trims the sorted set to the window and adds now when budget
// remains. Scores are unix milliseconds supplied by the caller.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= max then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// Redis shares limiter state between ingest instances.
type Redis struct {
	client *redis.Client
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, clock clockwork.Clock, logger *slog.Logger) *Redis {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, clock: clock, logger: logger}
}

// CanRequest fails open when redis is unreachable: losing the duplicate guard
// is preferred over losing telemetry.
func (r *Redis) CanRequest(ctx context.Context, key string, rule Rule) bool {
	now := r.clock.Now().UnixMilli()
	res, err := slidingWindow.Run(ctx, r.client,
		[]string{redisKeyPrefix + key},
		now,
		rule.Window.Milliseconds(),
		rule.MaxRequests,
		strconv.FormatInt(now, 10)+"-"+uuid.NewString(),
	).Int()
	if err != nil {
		r.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true
	}
	return res == 1
}

// Clear deletes one key.
func (r *Redis) Clear(ctx context.Context, key string) {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		r.logger.Warn("rate limiter clear failed", "key", key, "error", err)
	}
}

// ClearAll deletes every limiter key using SCAN.
func (r *Redis) ClearAll(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			r.logger.Warn("rate limiter scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				r.logger.Warn("rate limiter clear failed", "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
