package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	alerter := NewAuditAlerter(client, "test:alerts")
	if alerter == nil {
		t.Fatalf("expected alerter")
	}
	return alerter
}

func TestAuditAlerterObserveTriggers(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		result, err := alerter.Observe(ctx, "web.login", "fail", "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered != (i == 10) {
			t.Fatalf("attempt %d: triggered=%v count=%d", i, result.Triggered, result.Count)
		}
	}
	other, err := alerter.Observe(ctx, "web.login", "fail", "10.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if other.Triggered || other.Count != 1 {
		t.Fatalf("counters must be per ip, got %+v", other)
	}
}

func TestAuditAlerterWindowsReset(t *testing.T) {
	alerter := newTestAlerter(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, err := alerter.Observe(ctx, "web.register", "rate_limited", "1.2.3.4"); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	now = now.Add(time.Minute)
	result, err := alerter.Observe(ctx, "web.register", "rate_limited", "1.2.3.4")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", result)
	}
}

func TestAuditAlerterObserveIgnoresUnknownRule(t *testing.T) {
	alerter := newTestAlerter(t)
	for _, tc := range [][2]string{{"web.login", "success"}, {"web.authorize", "fail"}} {
		result, err := alerter.Observe(context.Background(), tc[0], tc[1], "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered || result.Count != 0 {
			t.Fatalf("unexpected evaluation for %v: %+v", tc, result)
		}
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	var alerter *AuditAlerter
	if NewAuditAlerter(nil, "") != nil {
		t.Fatalf("expected nil alerter without client")
	}
	result, err := alerter.Observe(context.Background(), "web.login", "fail", "127.0.0.1")
	if err != nil || result.Triggered {
		t.Fatalf("nil alerter must be a no-op, got %+v %v", result, err)
	}
}

func TestSanitizeSegment(t *testing.T) {
	if got := sanitizeSegment(" a:b|c d "); got != "a_b_c_d" {
		t.Fatalf("unexpected sanitize: %q", got)
	}
	if got := sanitizeSegment(""); got != "unknown" {
		t.Fatalf("unexpected sanitize: %q", got)
	}
}
