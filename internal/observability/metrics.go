package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	metricsNamespace = "mimi_dispatch"
	// PushJob is the job label the CLI pushes under.
	PushJob = "mimi"
)

// Delivery outcomes.
const (
	OutcomeSent     = "sent"
	OutcomeRecorded = "recorded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Provider endpoints.
const (
	EndpointSingleSend    = "single_send"
	EndpointAudienceLists = "audience_lists"
)

// Metrics stores Prometheus collectors for delivery and provider calls.
type Metrics struct {
	registry *prometheus.Registry

	deliveriesTotal         *prometheus.CounterVec
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "deliveries_total",
				Help:      "Total number of delivery actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provider_requests_total",
				Help:      "Total number of Mad Mimi API requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		providerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Mad Mimi API request duration in seconds by endpoint.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deliveriesTotal,
		m.providerRequestsTotal,
		m.providerRequestDuration,
	)

	return m
}

// Registry exposes the collectors to an embedding application.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends every collector to a Prometheus Pushgateway, replacing the
// previous samples of job. A one-shot process calls it once before exiting.
func (m *Metrics) Push(ctx context.Context, gatewayURL string, job string) error {
	if m == nil || m.registry == nil {
		return fmt.Errorf("metrics are not configured")
	}
	if strings.TrimSpace(job) == "" {
		job = PushJob
	}

	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

func (m *Metrics) IncDelivery(action string, outcome string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// ObserveProviderRequest records one API call. statusCode is 0 when the
// request failed before a response arrived.
func (m *Metrics) ObserveProviderRequest(endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}

	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}

	endpointLabel := normalizeLabel(endpoint)
	m.providerRequestsTotal.WithLabelValues(endpointLabel, status).Inc()
	m.providerRequestDuration.WithLabelValues(endpointLabel).Observe(seconds)
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
