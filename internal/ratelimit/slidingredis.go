package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more event for key fits within max per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// SlidingRedis is a sliding-window limiter over Redis sorted sets, shared by
// every API instance pointed at the same Redis. Rejected events are not
// recorded, so a client that backs off regains capacity as its accepted
// events age out.
type SlidingRedis struct {
	Client *redis.Client
	Prefix string
}

var _ Limiter = SlidingRedis{}

// KEYS[1] set key; ARGV now_ms, window_ms, max, member.
// Returns {allowed, remaining, reset_ms}.
var slidingWindow = redis.NewScript(`
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
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, limit - count, reset}
`)

// Allow records an event for key when it fits and reports the outcome.
func (l SlidingRedis) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	now := time.Now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	res, err := slidingWindow.Run(ctx, l.Client,
		[]string{l.Prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), fmt.Errorf("ratelimit: sliding window: %w", err)
	}
	if len(res) != 3 {
		return false, 0, now.Add(window), errors.New("ratelimit: unexpected script reply")
	}
	return res[0] == 1, int(max64(res[1], 0)), time.UnixMilli(res[2]), nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
