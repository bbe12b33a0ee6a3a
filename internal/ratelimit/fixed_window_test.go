package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, window)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	fixed := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }
	return limiter, mr
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "ip-1")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d should pass, d=%+v err=%v", i+1, d, err)
		}
	}
	d, err := limiter.Allow(ctx, "ip-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatalf("third request should be blocked")
	}
	if d.RetryAfter != 50*time.Second {
		t.Fatalf("expected 50s retry-after, got %v", d.RetryAfter)
	}
	if d, _ := limiter.Allow(ctx, "ip-2"); !d.Allowed {
		t.Fatalf("other keys keep their own budget")
	}
}

func TestFixedWindowLimiterResetsNextWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()
	if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
		t.Fatalf("first request should pass")
	}
	if d, _ := limiter.Allow(ctx, "ip-1"); d.Allowed {
		t.Fatalf("second request should be blocked")
	}
	next := time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)
	limiter.now = func() time.Time { return next }
	if d, _ := limiter.Allow(ctx, "ip-1"); !d.Allowed {
		t.Fatalf("new window should pass")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Second)
	mr.Close()
	d, err := limiter.Allow(context.Background(), "ip-1")
	if err == nil || d.Allowed {
		t.Fatalf("limiter should fail closed on redis errors, d=%+v err=%v", d, err)
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "p", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
