// server/internal/metrics/metrics.go
// Package metrics holds the Prometheus collectors for captures, subscriptions and HTTP.
package metrics

import (
	"context"
	"net/http"

	"spotmytrash-api-server/internal/apperr"
	"spotmytrash-api-server/internal/models"
	"spotmytrash-api-server/internal/routing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

const namespace = "spotmytrash"

type Metrics struct {
	registry *prometheus.Registry

	CapturesRouted      *prometheus.CounterVec
	CaptureFailures     *prometheus.CounterVec
	Normalizations      prometheus.Counter
	PointsRejected      prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
	WebsocketClients    prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		CapturesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_routed_total",
			Help:      "Captures persisted, by path (online or offline).",
		}, []string{"path"}),
		CaptureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Captures that could not be persisted, by path and error kind.",
		}, []string{"path", "kind"}),
		Normalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "point_snapshots_total",
			Help:      "Fetches and subscription snapshots normalized into garbage points.",
		}),
		PointsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_rejected_total",
			Help:      "Raw garbage point documents dropped by normalization.",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open live subscriptions on the garbage point query.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	for _, c := range []prometheus.Collector{
		m.CapturesRouted, m.CaptureFailures, m.Normalizations, m.PointsRejected,
		m.ActiveSubscriptions, m.WebsocketClients, m.HTTPRequests, m.HTTPDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, eris.Wrap(err, "metrics: register collector")
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Routed(_ context.Context, _ models.CaptureRecord, res routing.Result) {
	m.CapturesRouted.WithLabelValues(string(res.Path)).Inc()
}

func (m *Metrics) Failed(_ context.Context, _ models.CaptureRecord, path routing.Path, err error) {
	m.CaptureFailures.WithLabelValues(string(path), apperr.Label(err)).Inc()
}

func (m *Metrics) Normalized(_, rejected int) {
	m.Normalizations.Inc()
	m.PointsRejected.Add(float64(rejected))
}

func (m *Metrics) SubscriptionOpened() { m.ActiveSubscriptions.Inc() }
func (m *Metrics) SubscriptionClosed() { m.ActiveSubscriptions.Dec() }
