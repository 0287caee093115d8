package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can take one unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	// REST metrics
	RequestDuration *prometheus.HistogramVec

	// Realtime metrics
	RealtimeMessages   *prometheus.CounterVec
	RealtimeMalformed  *prometheus.CounterVec
	RealtimeReconnects *prometheus.CounterVec
	RealtimeState      *prometheus.GaugeVec

	// Cache metrics
	CacheLookups       *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spendsense_console_api_request_duration_seconds",
			Help:    "REST request latency by endpoint and status",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "endpoint", "status"}),

		RealtimeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendsense_console_realtime_messages_total",
			Help: "Realtime messages received by channel and type",
		}, []string{"channel", "type"}),

		RealtimeMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendsense_console_realtime_malformed_total",
			Help: "Realtime payloads dropped because they were not valid JSON",
		}, []string{"channel"}),

		RealtimeReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendsense_console_realtime_reconnects_total",
			Help: "Reconnect attempts scheduled by channel",
		}, []string{"channel"}),

		RealtimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spendsense_console_realtime_state",
			Help: "Realtime channel state (0=disconnected, 1=connecting, 2=connected, 3=failed)",
		}, []string{"channel"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendsense_console_cache_lookups_total",
			Help: "Query cache lookups by result (hit, miss, shared)",
		}, []string{"family", "result"}),

		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendsense_console_cache_updates_total",
			Help: "Query cache invalidations and patches by family",
		}, []string{"family", "kind"}),
	}

	m.registry.MustRegister(
		m.RequestDuration,
		m.RealtimeMessages,
		m.RealtimeMalformed,
		m.RealtimeReconnects,
		m.RealtimeState,
		m.CacheLookups,
		m.CacheInvalidations,
	)
	return m
}

// Registry exposes the underlying registry (for tests and custom handlers).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one REST call. status 0 means the request never got a response.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, endpoint, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// RealtimeMessage counts a decoded realtime message.
func (m *Metrics) RealtimeMessage(channel, msgType string) {
	if m == nil {
		return
	}
	m.RealtimeMessages.WithLabelValues(channel, msgType).Inc()
}

// RealtimeMalformedMessage counts a dropped payload.
func (m *Metrics) RealtimeMalformedMessage(channel string) {
	if m == nil {
		return
	}
	m.RealtimeMalformed.WithLabelValues(channel).Inc()
}

// RealtimeReconnect counts a scheduled reconnect.
func (m *Metrics) RealtimeReconnect(channel string) {
	if m == nil {
		return
	}
	m.RealtimeReconnects.WithLabelValues(channel).Inc()
}

// SetRealtimeState records the channel's current state code.
func (m *Metrics) SetRealtimeState(channel string, state int) {
	if m == nil {
		return
	}
	m.RealtimeState.WithLabelValues(channel).Set(float64(state))
}

// CacheLookup counts a cache read by result.
func (m *Metrics) CacheLookup(family, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(family, result).Inc()
}

// CacheUpdate counts an invalidation or patch.
func (m *Metrics) CacheUpdate(family, kind string) {
	if m == nil {
		return
	}
	m.CacheInvalidations.WithLabelValues(family, kind).Inc()
}
