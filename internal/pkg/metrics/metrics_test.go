package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"routesync/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveTransition("scan", "applied")
		m.ObserveRefresh("ok", time.Second)
		m.ObserveCoalesced()
		m.SessionOpened()
		m.SessionClosed()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ObserveTransition("scan", "applied")
	m.ObserveTransition("scan", "applied")
	m.ObserveScan("rejected", "fingerprint_mismatch")
	m.SessionOpened()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `routesync_order_transitions_total{origin="scan",result="applied"} 2`)
	assert.Contains(t, body, `routesync_qr_scans_total{outcome="rejected",reason="fingerprint_mismatch"} 1`)
	assert.Contains(t, body, "routesync_driver_sessions 1")

	count, err := testutil.GatherAndCount(m.Registry(), "routesync_order_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
