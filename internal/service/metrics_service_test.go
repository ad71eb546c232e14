package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCountsMutations(t *testing.T) {
	m := NewMetricsService()
	m.RecordPendingMutation("update", nil)
	m.RecordPendingMutation("update", nil)
	m.RecordPendingMutation("update", errors.New("conflict"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.pendingMutations.WithLabelValues("update", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pendingMutations.WithLabelValues("update", "error")))
}

func TestMetricsServiceCacheCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheMisses))
}

func TestMetricsServiceHandlerServesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/pending-registrations", http.StatusOK, 10*time.Millisecond)
	m.ObserveViewItems(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "pending_view_items")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordPendingMutation("create", nil)
	m.ObserveViewItems(1)
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
