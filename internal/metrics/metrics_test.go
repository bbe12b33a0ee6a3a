package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "GET /", 200, 15*time.Millisecond)
	m.Reaction("like", "added")
	m.Explanation("ok")
	m.AuthEvent("login", "failure")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`quoteshare_http_requests_total{method="GET",route="GET /",status="200"} 1`,
		`quoteshare_reaction_toggles_total{state="added",type="like"} 1`,
		`quoteshare_ai_explanations_total{outcome="ok"} 1`,
		`quoteshare_auth_events_total{event="login",outcome="failure"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Reaction("collect", "removed")
	if got := testutil.ToFloat64(a.reactions.WithLabelValues("collect", "removed")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(b.reactions.WithLabelValues("collect", "removed")); got != 0 {
		t.Fatalf("expected independent registry, got %v", got)
	}
}
