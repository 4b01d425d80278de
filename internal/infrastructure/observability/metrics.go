package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Attempt lifecycle metrics
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	ActiveAttempts  prometheus.Gauge
	AttemptRetries  prometheus.Counter

	// Poll loop metrics
	PollsTotal        *prometheus.CounterVec
	PollTransportErrs prometheus.Counter

	// Gateway metrics
	GatewayCalls        *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Webhook relay metrics
	RelayDeliveries       *prometheus.CounterVec
	RelayDeliveryDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of push-payment attempts by terminal status and result category",
			},
			[]string{"status", "category"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Time from initiation to terminal state in seconds",
				Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120, 180},
			},
			[]string{"status"},
		),
		ActiveAttempts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_attempts",
				Help:      "Number of attempts currently awaiting confirmation",
			},
		),
		AttemptRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempt_retries_total",
				Help:      "Total number of retried orders (new attempts after a terminal failure)",
			},
		),
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of status polls by outcome",
			},
			[]string{"outcome"},
		),
		PollTransportErrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_transport_errors_total",
				Help:      "Total number of poll cycles that exhausted their transport retries",
			},
		),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Total number of gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		GatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Gateway call duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RelayDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_deliveries_total",
				Help:      "Total number of webhook deliveries by result",
			},
			[]string{"result"},
		),
		RelayDeliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_delivery_duration_seconds",
				Help:      "Webhook delivery duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.AttemptsTotal,
		m.AttemptDuration,
		m.ActiveAttempts,
		m.AttemptRetries,
		m.PollsTotal,
		m.PollTransportErrs,
		m.GatewayCalls,
		m.GatewayCallDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RelayDeliveries,
		m.RelayDeliveryDuration,
	)

	return m
}
