package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quoteshare"

// Metrics owns a private registry so several servers (and tests) can coexist
// in one process.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	reactions    *prometheus.CounterVec
	explanations *prometheus.CounterVec
	authEvents   *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process stats.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, matched route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and matched route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_toggles_total",
			Help:      "Reaction toggles by reaction type and resulting state.",
		}, []string{"type", "state"}),
		explanations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_explanations_total",
			Help:      "AI explanation requests by outcome code.",
		}, []string{"outcome"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Register, login and logout attempts by outcome.",
		}, []string{"event", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.reactions,
		m.explanations,
		m.authEvents,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest matches util.RequestObserver.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Reaction(reactionType, state string) {
	m.reactions.WithLabelValues(reactionType, state).Inc()
}

func (m *Metrics) Explanation(outcome string) {
	m.explanations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuthEvent(event, outcome string) {
	m.authEvents.WithLabelValues(event, outcome).Inc()
}
