package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/stats", 200, time.Millisecond)
		m.RealtimeMessage("operator", "recommendation_status_changed")
		m.RealtimeMalformedMessage("operator")
		m.RealtimeReconnect("operator")
		m.SetRealtimeState("operator", 2)
		m.CacheLookup("stats", "hit")
		m.CacheUpdate("stats", "invalidate")
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.RealtimeMessage("operator", "recommendation_status_changed")
	m.RealtimeMessage("operator", "recommendation_status_changed")
	m.RealtimeReconnect("feedback")
	m.SetRealtimeState("operator", 2)
	m.CacheUpdate("operator.recommendations", "invalidate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RealtimeMessages.WithLabelValues("operator", "recommendation_status_changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeReconnects.WithLabelValues("feedback")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RealtimeState.WithLabelValues("operator")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations.WithLabelValues("operator.recommendations", "invalidate")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("PUT", "/operator/recommendations/{id}/approve", 200, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "spendsense_console_api_request_duration_seconds")
}
