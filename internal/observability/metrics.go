// Package observability provides prometheus instrumentation for upstream
// provider calls.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusHooks implements llmclient.Hooks backed by prometheus metrics.
type PrometheusHooks struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusHooks registers the upstream metrics on the default
// registry. Call at most once per process.
func NewPrometheusHooks() *PrometheusHooks {
	return NewPrometheusHooksWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPrometheusHooksWithRegisterer registers the metrics on a custom
// registerer. Used by tests to avoid duplicate registration.
func NewPrometheusHooksWithRegisterer(reg prometheus.Registerer) *PrometheusHooks {
	factory := promauto.With(reg)
	return &PrometheusHooks{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mindbridge_upstream_requests_total",
			Help: "Upstream provider requests by provider, endpoint and status.",
		}, []string{"provider", "endpoint", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindbridge_upstream_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "endpoint"}),
	}
}

// ObserveUpstreamRequest records one upstream attempt. A status of 0 means
// the request failed at the transport level before any response arrived.
func (h *PrometheusHooks) ObserveUpstreamRequest(provider, endpoint string, status int, duration time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	h.requests.WithLabelValues(provider, endpoint, statusLabel).Inc()
	h.duration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}
