package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowTTLSeconds keeps a window counter alive one second past its window
// so late replicas still see it.
const redisWindowTTLSeconds = 2

// windowCounterScript increments a window counter and arms its expiry on
// first use; a counter never exists without a TTL.
var windowCounterScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return hits
`)

// RedisLimiter counts auth-route hits per client in one-second windows stored
// in Redis, so every API replica enforces the same budget.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow records one hit for key in the window containing now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || key == "" || limit <= 0 {
		return Result{Allowed: true}, nil
	}
	window := now.Unix()
	reset := time.Unix(window+1, 0).UTC()

	raw, errRun := windowCounterScript.Run(ctx, l.client, []string{l.windowKey(key, window)}, redisWindowTTLSeconds).Result()
	if errRun != nil {
		return Result{}, fmt.Errorf("ratelimit: redis window counter: %w", errRun)
	}
	hits, errHits := hitCount(raw)
	if errHits != nil {
		return Result{}, errHits
	}
	if hits > int64(limit) {
		return rejected(now, reset), nil
	}
	return Result{Allowed: true, Remaining: limit - int(hits), Reset: reset}, nil
}

// windowKey renders "<prefix>:<key>:<unix second>"; the prefix is omitted when empty.
func (l *RedisLimiter) windowKey(key string, window int64) string {
	parts := make([]string, 0, 3)
	if l.prefix != "" {
		parts = append(parts, l.prefix)
	}
	parts = append(parts, key, strconv.FormatInt(window, 10))
	return strings.Join(parts, ":")
}

func hitCount(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("ratelimit: unexpected redis reply %T", raw)
	}
}
