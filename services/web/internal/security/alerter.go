package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// AlertResult contains alert evaluation output.
type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter aggregates failed security events per client IP in Redis
// and reports when a rule's threshold is reached within its window.
type AuditAlerter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewAuditAlerter returns nil when client is nil; a nil alerter observes nothing.
func NewAuditAlerter(client redis.UniversalClient, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "quoteshare:alerts"
	}
	return &AuditAlerter{client: client, prefix: prefix, now: time.Now}
}

// Observe records a security event and returns whether alert threshold is reached.
func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	result := AlertResult{}
	if a == nil {
		return result, nil
	}
	threshold, window, ok := alertRule(event, outcome)
	if !ok {
		return result, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	windowMs := window.Milliseconds()
	slot := a.now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, sanitizeSegment(event), sanitizeSegment(outcome), sanitizeSegment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return result, fmt.Errorf("alert counter: %w", err)
	}
	result.Count = count
	result.Threshold = threshold
	result.Window = window
	result.Triggered = count >= threshold
	return result, nil
}

func alertRule(event, outcome string) (threshold int64, window time.Duration, ok bool) {
	event = strings.TrimSpace(event)
	outcome = strings.TrimSpace(outcome)
	if outcome == "rate_limited" {
		return 20, time.Minute, true
	}
	if outcome != "fail" {
		return 0, 0, false
	}
	switch event {
	case "web.login", "web.register":
		return 10, 5 * time.Minute, true
	case "web.logout", "web.account.delete":
		return 15, 5 * time.Minute, true
	default:
		// anonymous page views fail web.authorize routinely
		return 0, 0, false
	}
}

func sanitizeSegment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(":", "_", "|", "_", " ", "_")
	return replacer.Replace(in)
}
