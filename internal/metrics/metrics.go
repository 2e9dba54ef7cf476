// Package metrics exposes giveaway pipeline and Twitch request metrics to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"giveaway/internal/models"
)

// Metrics records pipeline observations and upstream request outcomes.
type Metrics struct {
	pagesFetched    *prometheus.CounterVec
	namesFetched    *prometheus.CounterVec
	poolSize        *prometheus.GaugeVec
	draws           *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giveaway_pages_fetched_total",
				Help: "Pages fetched from the platform, by source.",
			},
			[]string{"source"},
		),
		namesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giveaway_names_fetched_total",
				Help: "Participant names fetched from the platform, by source.",
			},
			[]string{"source"},
		),
		poolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "giveaway_pool_size",
				Help: "Tickets in the pool after each pipeline stage.",
			},
			[]string{"stage"},
		),
		draws: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "giveaway_draws_total",
				Help: "Draws performed, by mode.",
			},
			[]string{"mode"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitch_requests_total",
				Help: "Requests sent to Twitch, by operation and status.",
			},
			[]string{"operation", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "twitch_request_duration_seconds",
				Help:    "Latency of requests sent to Twitch.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// ObservePage counts one fetched page and the names it carried.
func (m *Metrics) ObservePage(src models.Source, names int) {
	m.pagesFetched.WithLabelValues(src.String()).Inc()
	m.namesFetched.WithLabelValues(src.String()).Add(float64(names))
}

// ObservePool records the pool size at a pipeline stage.
func (m *Metrics) ObservePool(stage string, size int) {
	m.poolSize.WithLabelValues(stage).Set(float64(size))
}

func (m *Metrics) ObserveDraw(mode string) {
	m.draws.WithLabelValues(mode).Inc()
}

// ObserveRequest records one upstream request. op is the API operation
// name, never a URL path.
func (m *Metrics) ObserveRequest(op, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(op, status).Inc()
	m.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
