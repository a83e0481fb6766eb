package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	attemptsCreatedTotal   *prometheus.CounterVec
	deliveriesSentTotal    *prometheus.CounterVec
	deliveriesFailedTotal  *prometheus.CounterVec
	deliverySendDuration   *prometheus.HistogramVec
	workerInflight         *prometheus.GaugeVec
	retriesScheduledTotal  *prometheus.CounterVec
	retriesExhaustedTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		attemptsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "delivery_attempts_created_total",
				Help:      "Total number of delivery attempts created at fan-out.",
			},
			[]string{"channel_type"},
		),
		deliveriesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "deliveries_sent_total",
				Help:      "Total number of delivery attempts that reached sent state.",
			},
			[]string{"channel_type"},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "deliveries_failed_total",
				Help:      "Total number of delivery attempts that ended in failed state.",
			},
			[]string{"channel_type", "reason"},
		),
		deliverySendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "delivery_send_duration_seconds",
				Help:      "Transport send duration in seconds grouped by channel type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel_type"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "notify_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker sends grouped by channel type.",
			},
			[]string{"channel_type"},
		),
		retriesScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "retries_scheduled_total",
				Help:      "Total number of delivery attempts scheduled for retry.",
			},
			[]string{"channel_type"},
		),
		retriesExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "retries_exhausted_total",
				Help:      "Total number of delivery attempts that hit their retry cap.",
			},
			[]string{"channel_type"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.attemptsCreatedTotal,
		m.deliveriesSentTotal,
		m.deliveriesFailedTotal,
		m.deliverySendDuration,
		m.workerInflight,
		m.retriesScheduledTotal,
		m.retriesExhaustedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncAttemptCreated(channelType string) {
	if m == nil {
		return
	}
	m.attemptsCreatedTotal.WithLabelValues(normalizeChannelType(channelType)).Inc()
}

func (m *Metrics) IncDeliverySent(channelType string) {
	if m == nil {
		return
	}
	m.deliveriesSentTotal.WithLabelValues(normalizeChannelType(channelType)).Inc()
}

func (m *Metrics) IncDeliveryFailed(channelType string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.deliveriesFailedTotal.WithLabelValues(normalizeChannelType(channelType), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(channelType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliverySendDuration.WithLabelValues(normalizeChannelType(channelType)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(channelType string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannelType(channelType)).Inc()
}

func (m *Metrics) DecWorkerInFlight(channelType string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeChannelType(channelType)).Dec()
}

func (m *Metrics) IncRetryScheduled(channelType string) {
	if m == nil {
		return
	}
	m.retriesScheduledTotal.WithLabelValues(normalizeChannelType(channelType)).Inc()
}

func (m *Metrics) IncRetryExhausted(channelType string) {
	if m == nil {
		return
	}
	m.retriesExhaustedTotal.WithLabelValues(normalizeChannelType(channelType)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannelType(channelType string) string {
	normalized := strings.ToLower(strings.TrimSpace(channelType))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
