package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sendcertificates/server/internal/config"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "k", 3, now)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %#v err=%v", i+1, res, err)
		}
	}
	res, _ := l.Allow(ctx, "k", 3, now.Add(500*time.Millisecond))
	if res.Allowed {
		t.Fatalf("expected 4th request in the same second to be rejected")
	}
	if !res.Reset.Equal(time.Unix(1_700_000_001, 0).UTC()) {
		t.Fatalf("unexpected reset %s", res.Reset)
	}
	if res, _ = l.Allow(ctx, "k", 3, now.Add(time.Second)); !res.Allowed {
		t.Fatalf("expected next window to allow")
	}
	if res, _ = l.Allow(ctx, "other", 3, now); !res.Allowed {
		t.Fatalf("expected separate keys to be independent")
	}
	if res, _ = l.Allow(ctx, "k", 0, now); !res.Allowed {
		t.Fatalf("expected zero limit to disable limiting")
	}
}

func TestMemoryLimiter_Prunes(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	old := time.Unix(1_700_000_000, 0)
	for i := 0; i < memoryPruneThreshold; i++ {
		_, _ = l.Allow(ctx, KeyForRequest("login", "10.0.0."+strconv.Itoa(i)), 1, old)
	}
	_, _ = l.Allow(ctx, "fresh", 1, old.Add(time.Minute))
	if got := len(l.counters); got != 1 {
		t.Fatalf("expected stale windows pruned, %d counters left", got)
	}
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLimiter(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLimiter(client, "test")
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k", 2, now)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %#v err=%v", i+1, res, err)
		}
	}
	res, err := l.Allow(ctx, "k", 2, now)
	if err != nil || res.Allowed {
		t.Fatalf("expected rejection, got %#v err=%v", res, err)
	}
	if !mr.Exists("test:k:1700000000") {
		t.Fatalf("expected prefixed window key in redis, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("test:k:1700000000"); ttl != redisWindowTTLSeconds*time.Second {
		t.Fatalf("expected window ttl, got %s", ttl)
	}
}

func TestManager_UsesRedisWhenConfigured(t *testing.T) {
	_, mr := setupTestRedis(t)
	now := time.Unix(1_700_000_000, 0)
	settings := SettingsFromConfig(config.RateLimitConfig{Limit: 1, RedisAddr: mr.Addr()})
	m := NewManager(StaticSettings(settings), func() time.Time { return now }, nil)
	t.Cleanup(func() { _ = m.Close() })

	if res, err := m.Allow(context.Background(), "k"); err != nil || !res.Allowed {
		t.Fatalf("expected first request allowed, got %#v err=%v", res, err)
	}
	if res, _ := m.Allow(context.Background(), "k"); res.Allowed {
		t.Fatalf("expected second request rejected")
	}
	if !mr.Exists(config.DefaultRateLimitRedisPrefix + ":k:1700000000") {
		t.Fatalf("expected counter in redis, keys=%v", mr.Keys())
	}
}

func TestManager_FallsBackToMemoryWhenRedisDown(t *testing.T) {
	_, mr := setupTestRedis(t)
	addr := mr.Addr()
	mr.Close()

	now := time.Unix(1_700_000_000, 0)
	settings := SettingsFromConfig(config.RateLimitConfig{Limit: 1, RedisAddr: addr})
	m := NewManager(StaticSettings(settings), func() time.Time { return now }, nil)

	if res, err := m.Allow(context.Background(), "k"); err != nil || !res.Allowed {
		t.Fatalf("expected memory fallback to allow, got %#v err=%v", res, err)
	}
	if !m.isBreakerActive(now) {
		t.Fatalf("expected breaker to open after redis failure")
	}
	if res, _ := m.Allow(context.Background(), "k"); res.Allowed {
		t.Fatalf("expected memory limiter to enforce the limit")
	}
	if m.isBreakerActive(now.Add(redisBreakerDuration)) {
		t.Fatalf("expected breaker to close after %s", redisBreakerDuration)
	}
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(StaticSettings(SettingsFromConfig(config.RateLimitConfig{})), nil, nil)
	for i := 0; i < 100; i++ {
		if res, _ := m.Allow(context.Background(), "k"); !res.Allowed {
			t.Fatalf("expected no limiting when limit is 0")
		}
	}
	var nilManager *Manager
	if res, _ := nilManager.Allow(context.Background(), "k"); !res.Allowed {
		t.Fatalf("expected nil manager to allow")
	}
}

func TestKeyForRequest(t *testing.T) {
	if got := KeyForRequest("login", "10.0.0.1"); got != "ip:10.0.0.1:r:login" {
		t.Fatalf("unexpected key %q", got)
	}
	if KeyForRequest("", "10.0.0.1") != "" || KeyForRequest("login", " ") != "" {
		t.Fatalf("expected empty key for missing parts")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.RateLimitConfig{Limit: -1, RedisDB: -2})
	if s.Limit != 0 || s.RedisDB != 0 || s.RedisEnabled || s.RedisPrefix != config.DefaultRateLimitRedisPrefix {
		t.Fatalf("unexpected settings %#v", s)
	}
	s = SettingsFromConfig(config.RateLimitConfig{Limit: 5, RedisAddr: "localhost:6379"})
	if !s.RedisEnabled || s.Limit != 5 {
		t.Fatalf("expected redis enabled, got %#v", s)
	}
}

func TestRedisLimiter_RequestKeysShareWindowAcrossInstances(t *testing.T) {
	client, mr := setupTestRedis(t)
	first := NewRedisLimiter(client, config.DefaultRateLimitRedisPrefix)
	second := NewRedisLimiter(client, config.DefaultRateLimitRedisPrefix)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	key := KeyForRequest("login", "203.0.113.9")

	if res, err := first.Allow(ctx, key, 1, now); err != nil || !res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected first login allowed, got %#v err=%v", res, err)
	}
	if res, err := second.Allow(ctx, key, 1, now); err != nil || res.Allowed {
		t.Fatalf("expected second instance to see the shared counter, got %#v err=%v", res, err)
	}
	if !mr.Exists("sc:rl:ip:203.0.113.9:r:login:1700000000") {
		t.Fatalf("expected route window key, keys=%v", mr.Keys())
	}
	if res, err := second.Allow(ctx, key, 1, now.Add(time.Second)); err != nil || !res.Allowed {
		t.Fatalf("expected next window allowed, got %#v err=%v", res, err)
	}
}

func TestRedisLimiter_WindowKeyWithoutPrefix(t *testing.T) {
	l := NewRedisLimiter(nil, "  ")
	if got := l.windowKey("ip:10.0.0.1:r:signup", 42); got != "ip:10.0.0.1:r:signup:42" {
		t.Fatalf("unexpected key %q", got)
	}
	if res, err := l.Allow(context.Background(), "k", 1, time.Now()); err != nil || !res.Allowed {
		t.Fatalf("expected nil client to allow, got %#v err=%v", res, err)
	}
}

func TestHitCount_RejectsUnexpectedReply(t *testing.T) {
	if n, err := hitCount(int64(3)); err != nil || n != 3 {
		t.Fatalf("expected 3, got %d err=%v", n, err)
	}
	if _, err := hitCount("3"); err == nil {
		t.Fatalf("expected error for string reply")
	}
}

func TestResult_RetryAfterSeconds(t *testing.T) {
	now := time.Unix(1_700_000_000, 250_000_000)
	res, _ := NewMemoryLimiter().Allow(context.Background(), "k", 0, now)
	if res.RetryAfter != 0 {
		t.Fatalf("expected no wait when unlimited, got %s", res.RetryAfter)
	}
	l := NewMemoryLimiter()
	_, _ = l.Allow(context.Background(), "k", 1, now)
	res, _ = l.Allow(context.Background(), "k", 1, now)
	if res.Allowed || res.RetryAfter != 750*time.Millisecond {
		t.Fatalf("expected rejection with 750ms wait, got %#v", res)
	}
	if got := res.RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected wait rounded up to 1s, got %d", got)
	}
	if got := (Result{RetryAfter: 1500 * time.Millisecond}).RetryAfterSeconds(); got != 2 {
		t.Fatalf("expected 2s, got %d", got)
	}
	if got := (Result{}).RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected floor of 1s, got %d", got)
	}
}
