package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/digital-bank-auth/internal/core/port"
)

// slidingWindowScript trims entries older than the window, records the attempt when the
// limit still allows it, and reports {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RateLimitRepository persists rate-limit attempts in Redis sorted sets scored by millisecond timestamps.
type RateLimitRepository struct {
	client redis.Scripter
	prefix string
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)

// NewRateLimitRepository constructs a repository using the provided Redis client and key prefix.
func NewRateLimitRepository(client redis.Scripter, prefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, prefix: prefix}
}

// Hit evaluates one attempt against the window ending at now.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (port.RateLimitWindow, error) {
	if limit <= 0 {
		return port.RateLimitWindow{}, errors.New("limit must be positive")
	}
	if window < time.Millisecond {
		return port.RateLimitWindow{}, errors.New("window must be at least one millisecond")
	}

	res, err := slidingWindowScript.Run(ctx, r.client, []string{r.key(key)},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return port.RateLimitWindow{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return port.RateLimitWindow{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(res))
	}

	return port.RateLimitWindow{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		Oldest:  time.UnixMilli(res[2]),
	}, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.prefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.prefix, identifier)
}
