package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpay/internal/domain"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SettlementOutcome(domain.SettlementStatusTransferred)
	m.SettlementOutcome(domain.SettlementStatusTransferred)
	m.SettlementOutcome(domain.SettlementStatusFailed)
	m.AnomalyRecorded(domain.AnomalyZeroMargin, domain.SeverityWarn)
	m.AnomalyDropped()
	m.WebhookProcessed("", "rejected")
	m.SweepFinished(2*time.Second, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Settlements.WithLabelValues("TRANSFERRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Anomalies.WithLabelValues("ZERO_MARGIN", "WARN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnomaliesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("unknown", "rejected")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.SweepOrders))
}

func TestHandler_ServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRequest("/v1/orders", http.StatusCreated, 12*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `coachpay_http_requests_total{handler="/v1/orders",status="201"} 1`))
}
