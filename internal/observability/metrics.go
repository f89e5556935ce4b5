package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reputation"

// Metrics holds the service's Prometheus collectors on a private registry.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	recomputes       *prometheus.CounterVec
	badgeAwards      *prometheus.CounterVec
	badgeRevocations *prometheus.CounterVec
	factCommands     *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by method, route and error code.",
		}, []string{"method", "route", "code"}),
		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recomputes_total",
			Help:      "Trust score recomputations by result.",
		}, []string{"result"}),
		badgeAwards: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badge_awards_total",
			Help:      "Badges inserted into the ledger by badge and origin.",
		}, []string{"badge", "origin"}),
		badgeRevocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badge_revocations_total",
			Help:      "Mirrored badges removed from the ledger.",
		}, []string{"badge"}),
		factCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fact_commands_total",
			Help:      "Fact commands consumed from the stream by result.",
		}, []string{"result"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_deliveries_total",
			Help:      "Outbound webhook and connects calls by target and result.",
		}, []string{"target", "result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a completed request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, route, code).Inc()
}

// RecordRecompute counts a recompute outcome: "ok" or "error".
func (m *Metrics) RecordRecompute(result string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(result).Inc()
}

// RecordBadgeAward counts a newly inserted badge.
func (m *Metrics) RecordBadgeAward(badge, origin string) {
	if m == nil {
		return
	}
	m.badgeAwards.WithLabelValues(badge, origin).Inc()
}

// RecordBadgeRevocation counts a removed mirrored badge.
func (m *Metrics) RecordBadgeRevocation(badge string) {
	if m == nil {
		return
	}
	m.badgeRevocations.WithLabelValues(badge).Inc()
}

// RecordFactCommand counts a stream command outcome.
func (m *Metrics) RecordFactCommand(result string) {
	if m == nil {
		return
	}
	m.factCommands.WithLabelValues(result).Inc()
}

// RecordDelivery counts an outbound call outcome.
func (m *Metrics) RecordDelivery(target, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(target, result).Inc()
}
