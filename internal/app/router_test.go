package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coachpay/internal/domain"
	"coachpay/internal/handler"
	"coachpay/internal/metrics"
	"coachpay/internal/pricing"
	"coachpay/internal/service"
	"coachpay/internal/tests"
)

type testServer struct {
	h         *tests.Harness
	anomalies *tests.MockAnomalyRepository
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := tests.NewHarness()
	anomalies := tests.NewMockAnomalyRepository()
	audit := service.NewAuditService(anomalies, nil, h.Metrics, h.Clock, h.Log, 16)
	t.Cleanup(func() { _ = audit.Close(context.Background()) })

	reg := prometheus.NewRegistry()
	router := NewRouter(RouterDeps{
		OrderHandler:    handler.NewOrderHandler(h.Checkout, h.Receipts, h.Trigger),
		FeeHandler:      handler.NewFeeHandler(h.Checkout),
		ProviderHandler: handler.NewProviderHandler(h.Providers),
		WebhookHandler:  handler.NewWebhookHandler(h.Webhooks),
		OpsHandler:      handler.NewOpsHandler(audit, h.Trigger),
		Logger:          h.Log,
		Metrics:         metrics.New(reg),
		Gatherer:        reg,
	})
	return &testServer{h: h, anomalies: anomalies, router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coachpay_http_requests_total")
}

func TestRouter_QuoteSingleSession(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/fees/quote", handler.QuoteRequest{Kind: "SINGLE", ProviderNetCents: 10000}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var q handler.QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.EqualValues(t, 175, q.ProcessorFeeCents)
	assert.EqualValues(t, 500, q.PlatformFeeCents)
	assert.EqualValues(t, 675, q.BuyerServiceFeeCents)
	assert.EqualValues(t, 10675, q.BuyerTotalCents)
}

func TestRouter_QuoteRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/fees/quote", handler.QuoteRequest{Kind: "SINGLE", ProviderNetCents: -1}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/fees/quote", handler.QuoteRequest{Kind: "PACK", ProviderNetCents: 10000}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_FractionalCentsAreInvalidAmount(t *testing.T) {
	s := newTestServer(t)
	s.h.EnableProvider("coach-1")
	body := map[string]any{"buyer_id": "buyer-1", "provider_id": "coach-1", "kind": "SINGLE", "provider_net_cents": 100.5}

	for _, path := range []string{"/v1/fees/quote", "/v1/orders"} {
		rec := s.do(t, http.MethodPost, path, body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, pricing.ErrInvalidAmount.Error(), decode(t, rec)["error"], path)
	}
	assert.Empty(t, s.h.Orders.Orders())

	rec := s.do(t, http.MethodPost, "/v1/fees/quote", map[string]any{"kind": 7}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode(t, rec)["error"])
}

func TestRouter_CaptureFailureIsGenericToBuyer(t *testing.T) {
	start := tests.Epoch.Add(24 * time.Hour)
	end := start.Add(time.Hour)
	req := handler.CreateOrderRequest{
		BuyerID:          "buyer-1",
		ProviderID:       "coach-1",
		Kind:             "SINGLE",
		ProviderNetCents: 10000,
		ScheduledStart:   &start,
		ScheduledEnd:     &end,
	}

	for _, cause := range []error{service.ErrProcessorUnavailable, errors.New("stripe: invalid api key")} {
		s := newTestServer(t)
		s.h.EnableProvider("coach-1")
		s.h.Capture.CreateError = cause

		rec := s.do(t, http.MethodPost, "/v1/orders", req, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, cause.Error())
		assert.Equal(t, "payment could not be completed", decode(t, rec)["error"], cause.Error())
	}
}

func TestRouter_CheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	s.h.EnableProvider("coach-1")

	start := tests.Epoch.Add(24 * time.Hour)
	end := start.Add(time.Hour)
	rec := s.do(t, http.MethodPost, "/v1/orders", handler.CreateOrderRequest{
		BuyerID:          "buyer-1",
		ProviderID:       "coach-1",
		Kind:             "SINGLE",
		ProviderNetCents: 10000,
		ScheduledStart:   &start,
		ScheduledEnd:     &end,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created handler.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.CaptureURL)
	assert.EqualValues(t, 10675, created.TotalCents)
	assert.Equal(t, "PENDING", created.PaymentStatus)
	assert.Equal(t, "NOT_DUE", created.PayoutStatus)

	sessionID := s.h.Orders.Get(created.ID).CaptureSessionID

	// Redirect before the buyer paid.
	rec = s.do(t, http.MethodGet, "/v1/checkout/success?session_id="+sessionID, nil, "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	s.h.Capture.Pay(sessionID, "pi_1")
	rec = s.do(t, http.MethodGet, "/v1/checkout/success?session_id="+sessionID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PAID", decode(t, rec)["payment_status"])

	// The session has not happened yet.
	rec = s.do(t, http.MethodPost, "/v1/orders/"+created.ID+"/complete", nil, "buyer-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	s.h.Clock.Advance(26 * time.Hour)
	rec = s.do(t, http.MethodPost, "/v1/orders/"+created.ID+"/complete", nil, "coach-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SENT", decode(t, rec)["payout_status"])
	assert.Equal(t, 1, s.h.Transfers.TransferCount())

	rec = s.do(t, http.MethodGet, "/v1/orders/"+created.ID, nil, "")
	assert.Equal(t, "SENT", decode(t, rec)["payout_status"])
}

func TestRouter_CompleteRequiresOrderParty(t *testing.T) {
	s := newTestServer(t)
	s.h.PaidSingleOrder("order-1", tests.Epoch.Add(-time.Hour))

	rec := s.do(t, http.MethodPost, "/v1/orders/order-1/complete", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/orders/order-1/complete", nil, "stranger")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, s.h.Transfers.TransferCount())
}

func TestRouter_BlockedSettlementLooksPending(t *testing.T) {
	s := newTestServer(t)
	order := s.h.PaidSingleOrder("order-1", tests.Epoch.Add(-time.Hour))
	order.SettlementStatus = domain.SettlementStatusBlocked
	order.SettlementAttempts = 3
	s.h.Orders.AddOrder(order)

	rec := s.do(t, http.MethodGet, "/v1/orders/order-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decode(t, rec)["payout_status"])
	assert.NotContains(t, rec.Body.String(), "BLOCKED")
	assert.NotContains(t, rec.Body.String(), "attempt")

	rec = s.do(t, http.MethodPost, "/v1/orders/order-1/complete", nil, "buyer-1")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "PENDING", decode(t, rec)["payout_status"])
	assert.NotContains(t, rec.Body.String(), "BLOCKED")
}

func TestRouter_FailedTransferLooksPending(t *testing.T) {
	s := newTestServer(t)
	s.h.PaidSingleOrder("order-1", tests.Epoch.Add(-time.Hour))
	s.h.Transfers.CreateErrors = []error{errors.New("insufficient platform balance")}

	rec := s.do(t, http.MethodPost, "/v1/orders/order-1/complete", nil, "buyer-1")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotContains(t, rec.Body.String(), "insufficient")
}

func TestRouter_ReceiptFormats(t *testing.T) {
	s := newTestServer(t)
	s.h.PaidSingleOrder("order-1", tests.Epoch.Add(-time.Hour))

	rec := s.do(t, http.MethodGet, "/v1/orders/order-1/receipt", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "106.75", body["total"])
	assert.Equal(t, "6.75", body["service_fee"])

	rec = s.do(t, http.MethodGet, "/v1/orders/order-1/receipt?format=text", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "COACHING RECEIPT")
	assert.Contains(t, rec.Body.String(), "106.75")
}

func TestRouter_UnknownOrder(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/v1/orders/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Webhook(t *testing.T) {
	s := newTestServer(t)
	order := s.h.PaidSingleOrder("order-1", tests.Epoch.Add(time.Hour))
	order.PaymentStatus = domain.PaymentStatusPending
	order.PaidAt = time.Time{}
	s.h.Orders.AddOrder(order)

	s.h.Verifier.Err = service.ErrWebhookVerification
	rec := s.do(t, http.MethodPost, "/v1/webhooks/stripe", map[string]string{"id": "evt_1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.PaymentStatusPending, s.h.Orders.Get("order-1").PaymentStatus)

	s.h.Verifier.Err = nil
	s.h.Verifier.Event = &domain.WebhookEvent{
		ID:               "evt_1",
		Type:             domain.EventCheckoutCompleted,
		OrderID:          "order-1",
		CaptureSessionID: "cs_order-1",
		PaymentID:        "pi_order-1",
		Paid:             true,
	}
	rec = s.do(t, http.MethodPost, "/v1/webhooks/stripe", map[string]string{"id": "evt_1"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.OutcomePaid, decode(t, rec)["outcome"])

	rec = s.do(t, http.MethodPost, "/v1/webhooks/stripe", map[string]string{"id": "evt_1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutcomeDuplicate, decode(t, rec)["outcome"])
}

func TestRouter_WebhookPayloadTooLarge(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(strings.Repeat("x", 70000)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_ProviderOnboarding(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/providers/coach-9/payout-account", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "acct_coach-9", body["account_id"])
	assert.Equal(t, false, body["payouts_enabled"])

	rec = s.do(t, http.MethodGet, "/v1/providers/coach-9/payout-account", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct_coach-9", decode(t, rec)["account_id"])
}

func TestRouter_OpsAnomalies(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.anomalies.Create(ctx, &domain.Anomaly{
		ID: "a1", OrderID: "order-1", Category: domain.AnomalyZeroMargin, Severity: domain.SeverityWarn,
		Detail: "zero margin", CreatedAt: tests.Epoch,
	}))
	require.NoError(t, s.anomalies.Create(ctx, &domain.Anomaly{
		ID: "a2", OrderID: "order-2", Category: domain.AnomalyTransferFailure, Severity: domain.SeverityError,
		Detail: "transfer failed", CreatedAt: tests.Epoch.Add(time.Minute),
	}))

	rec := s.do(t, http.MethodGet, "/v1/ops/anomalies?severity=error", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []handler.AnomalyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a2", list[0].ID)

	rec = s.do(t, http.MethodGet, "/v1/ops/anomalies?severity=LOUD", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/ops/anomalies?limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_OpsSweepAndUnblock(t *testing.T) {
	s := newTestServer(t)
	s.h.PaidSingleOrder("order-1", tests.Epoch.Add(-time.Hour))
	blocked := s.h.PaidSingleOrder("order-2", tests.Epoch.Add(-time.Hour))
	blocked.SettlementStatus = domain.SettlementStatusBlocked
	blocked.SettlementAttempts = 3
	s.h.Orders.AddOrder(blocked)

	rec := s.do(t, http.MethodPost, "/v1/ops/settlements/sweep", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result service.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Transferred)

	rec = s.do(t, http.MethodPost, "/v1/ops/orders/order-2/unblock", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "FAILED", body["settlement_status"])
	assert.EqualValues(t, 0, body["settlement_attempts"])

	rec = s.do(t, http.MethodPost, "/v1/ops/orders/order-2/unblock", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}
