// Package metrics exposes Prometheus counters for the booking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels used on the bookings_total counter.
const (
	OutcomeConfirmed     = "confirmed"
	OutcomeConflict      = "conflict"
	OutcomeDenied        = "denied"
	OutcomeInvalid       = "invalid"
	OutcomeTimeout       = "timeout"
	OutcomeInternalError = "internal_error"
)

// Metrics bundles the service counters on a private registry so tests can
// create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	Bookings        *prometheus.CounterVec
	Cancellations   *prometheus.CounterVec
	ChannelPublish  *prometheus.CounterVec
	ChannelPolls    prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New builds and registers the service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.Bookings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "bookings_total",
		Help:      "Booking attempts partitioned by outcome",
	}, []string{"outcome"})
	m.Cancellations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "cancellations_total",
		Help:      "Cancellation requests partitioned by outcome",
	}, []string{"outcome"})
	m.ChannelPublish = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "channel_publishes_total",
		Help:      "Notification channel publish attempts partitioned by outcome",
	}, []string{"outcome"})
	m.ChannelPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "channel_polls_total",
		Help:      "Notification channel poll requests served",
	})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "booking",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency partitioned by route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	registry.MustRegister(
		m.Bookings,
		m.Cancellations,
		m.ChannelPublish,
		m.ChannelPolls,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
