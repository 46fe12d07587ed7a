package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"coachpay/internal/domain"
	"coachpay/internal/service"
)

// ──────────────────────────────────────────────
// 3. WEBHOOK INGESTION
// ──────────────────────────────────────────────

// pendingOrder seeds an order that is waiting for its capture session to be paid.
func pendingOrder(h *Harness, id string) *domain.Order {
	order := h.PaidSingleOrder(id, Epoch.Add(time.Hour))
	order.PaymentStatus = domain.PaymentStatusPending
	order.PaymentID = ""
	order.PaidAt = time.Time{}
	h.Orders.AddOrder(order)
	return order
}

func checkoutCompleted(eventID, orderID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:               eventID,
		Type:             domain.EventCheckoutCompleted,
		OrderID:          orderID,
		CaptureSessionID: "cs_" + orderID,
		PaymentID:        "pi_" + orderID,
		Paid:             true,
	}
}

func TestIngest_CheckoutCompletedMarksPaid(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	pendingOrder(h, "order-1")

	outcome, err := h.Webhooks.Ingest(context.Background(), checkoutCompleted("evt_1", "order-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomePaid {
		t.Errorf("expected outcome %s, got %s", service.OutcomePaid, outcome)
	}

	order := h.Orders.Get("order-1")
	if order.PaymentStatus != domain.PaymentStatusPaid || order.PaymentID != "pi_order-1" {
		t.Errorf("expected PAID with payment id, got %s %q", order.PaymentStatus, order.PaymentID)
	}
	if ev := h.Events.Get("evt_1"); ev == nil || ev.Outcome != service.OutcomePaid {
		t.Errorf("expected processed event with outcome paid, got %+v", ev)
	}
}

func TestIngest_DuplicateDeliveryIsNoop(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	pendingOrder(h, "order-1")
	ctx := context.Background()

	event := &domain.WebhookEvent{
		ID:        "evt_fail",
		Type:      domain.EventPaymentFailed,
		OrderID:   "order-1",
		PaymentID: "pi_order-1",
	}

	first, err := h.Webhooks.Ingest(ctx, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := h.Webhooks.Ingest(ctx, event)
	if err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}

	if first != service.OutcomePaymentFailed {
		t.Errorf("expected first outcome payment_failed, got %s", first)
	}
	if second != service.OutcomeDuplicate {
		t.Errorf("expected second outcome duplicate, got %s", second)
	}
	if n := len(h.Auditor.ByCategory(domain.AnomalyPaymentFailure)); n != 1 {
		t.Errorf("expected 1 payment failure anomaly, got %d", n)
	}
	_, webhooks, _ := h.Metrics.Snapshot()
	if webhooks[service.OutcomeDuplicate] != 1 {
		t.Errorf("expected duplicate metric, got %v", webhooks)
	}
}

func TestIngest_PaymentFailedAfterPaidIsConflict(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	h.PaidSingleOrder("order-1", Epoch.Add(time.Hour))

	outcome, err := h.Webhooks.Ingest(context.Background(), &domain.WebhookEvent{
		ID:            "evt_late_fail",
		Type:          domain.EventPaymentFailed,
		PaymentID:     "pi_order-1",
		FailureReason: "card_declined",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomeConflict {
		t.Errorf("expected conflict, got %s", outcome)
	}
	if got := h.Orders.Get("order-1").PaymentStatus; got != domain.PaymentStatusPaid {
		t.Errorf("paid order must not be downgraded, got %s", got)
	}

	conflicts := h.Auditor.ByCategory(domain.AnomalyPaymentStateConflict)
	if len(conflicts) != 1 || conflicts[0].Severity != domain.SeverityError || conflicts[0].OrderID != "order-1" {
		t.Errorf("expected one ERROR conflict for order-1, got %+v", conflicts)
	}
}

func TestIngest_PaymentSucceededAfterFailureRecoversOrder(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	pendingOrder(h, "order-1")
	ctx := context.Background()

	outcome, err := h.Webhooks.Ingest(ctx, &domain.WebhookEvent{
		ID:            "evt_declined",
		Type:          domain.EventPaymentFailed,
		OrderID:       "order-1",
		PaymentID:     "pi_order-1",
		FailureReason: "card_declined",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomePaymentFailed {
		t.Fatalf("expected payment_failed, got %s", outcome)
	}

	outcome, err = h.Webhooks.Ingest(ctx, &domain.WebhookEvent{
		ID:        "evt_retried_success",
		Type:      domain.EventPaymentSucceeded,
		OrderID:   "order-1",
		PaymentID: "pi_order-1",
		Paid:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomePaid {
		t.Errorf("expected paid, got %s", outcome)
	}

	order := h.Orders.Get("order-1")
	if order.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected PAID, got %s", order.PaymentStatus)
	}
	if !order.PaidAt.Equal(Epoch) {
		t.Errorf("expected paid_at %v, got %v", Epoch, order.PaidAt)
	}
	if conflicts := h.Auditor.ByCategory(domain.AnomalyPaymentStateConflict); len(conflicts) != 0 {
		t.Errorf("expected no conflict, got %+v", conflicts)
	}
	failures := h.Auditor.ByCategory(domain.AnomalyPaymentFailure)
	if len(failures) != 2 || failures[1].Severity != domain.SeverityInfo {
		t.Errorf("expected the failure and its recovery to be audited, got %+v", failures)
	}

	if _, err := h.Checkout.RetryPayment(ctx, "order-1", "buyer-1"); !errors.Is(err, service.ErrOrderNotRetryable) {
		t.Errorf("expected recovered order to refuse a retry, got %v", err)
	}
}

func TestIngest_PaymentSucceededOnOtherPaymentAfterFailureIsConflict(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	order := pendingOrder(h, "order-1")
	order.PaymentStatus = domain.PaymentStatusFailed
	order.PaymentID = "pi_declined"
	h.Orders.AddOrder(order)

	outcome, err := h.Webhooks.Ingest(context.Background(), &domain.WebhookEvent{
		ID:        "evt_late_success",
		Type:      domain.EventPaymentSucceeded,
		OrderID:   "order-1",
		PaymentID: "pi_other",
		Paid:      true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomeConflict {
		t.Errorf("expected conflict, got %s", outcome)
	}
	if got := h.Orders.Get("order-1").PaymentStatus; got != domain.PaymentStatusFailed {
		t.Errorf("expected FAILED to stay, got %s", got)
	}
	conflicts := h.Auditor.ByCategory(domain.AnomalyPaymentStateConflict)
	if len(conflicts) != 1 || conflicts[0].Severity != domain.SeverityError {
		t.Errorf("expected one ERROR conflict, got %+v", conflicts)
	}
}

func TestIngest_AsyncCheckoutWaitsForPayment(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	pendingOrder(h, "order-1")

	event := checkoutCompleted("evt_async", "order-1")
	event.Paid = false

	outcome, err := h.Webhooks.Ingest(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomeAwaitingPayment {
		t.Errorf("expected awaiting_payment, got %s", outcome)
	}
	if got := h.Orders.Get("order-1").PaymentStatus; got != domain.PaymentStatusPending {
		t.Errorf("expected PENDING, got %s", got)
	}
}

func TestIngest_RefundAfterTransferRaisesConflict(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	order := h.PaidSingleOrder("order-1", Epoch.Add(-time.Hour))
	order.SettlementStatus = domain.SettlementStatusTransferred
	order.TransferID = "tr_1"
	h.Orders.AddOrder(order)

	outcome, err := h.Webhooks.Ingest(context.Background(), &domain.WebhookEvent{
		ID:        "evt_refund",
		Type:      domain.EventChargeRefunded,
		PaymentID: "pi_order-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomeRefunded {
		t.Errorf("expected refunded, got %s", outcome)
	}
	if got := h.Orders.Get("order-1").Stage(); got != domain.StageRefunded {
		t.Errorf("expected stage REFUNDED, got %s", got)
	}
	if n := len(h.Orders.Cancellations()); n != 1 {
		t.Errorf("expected 1 cancellation, got %d", n)
	}
	if n := len(h.Auditor.ByCategory(domain.AnomalyPaymentStateConflict)); n != 1 {
		t.Errorf("expected a conflict anomaly for a refund after transfer, got %d", n)
	}
}

func TestIngest_AccountUpdatedInvalidatesCache(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	account := h.EnableProvider("coach-9")
	account.PayoutsEnabled = false
	h.Accounts.AddAccount(account)
	ctx := context.Background()

	// Warm the cache with the disabled state.
	if _, err := h.Providers.PayoutAccount(ctx, "coach-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome, err := h.Webhooks.Ingest(ctx, &domain.WebhookEvent{
		ID:             "evt_acct",
		Type:           domain.EventAccountUpdated,
		AccountID:      "acct_coach-9",
		PayoutsEnabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != service.OutcomeAccountUpdated {
		t.Errorf("expected account_updated, got %s", outcome)
	}

	got, err := h.Providers.PayoutAccount(ctx, "coach-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.PayoutsEnabled {
		t.Error("expected payouts enabled after update")
	}
}

func TestIngest_UnknownOrderAndEventType(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	ctx := context.Background()

	outcome, err := h.Webhooks.Ingest(ctx, checkoutCompleted("evt_x", "missing"))
	if err != nil || outcome != service.OutcomeUnmatched {
		t.Errorf("expected unmatched, got %s, %v", outcome, err)
	}

	outcome, err = h.Webhooks.Ingest(ctx, &domain.WebhookEvent{ID: "evt_y", Type: "customer.created"})
	if err != nil || outcome != service.OutcomeIgnored {
		t.Errorf("expected ignored, got %s, %v", outcome, err)
	}
}

func TestVerifyAndParse_RejectionIsLoggedAndAudited(t *testing.T) {
	t.Parallel()

	h := NewHarness()
	h.Verifier.Err = errors.New("no signatures found matching the expected signature")

	_, err := h.Webhooks.VerifyAndParse(context.Background(), []byte(`{"id":"evt_forged"}`), "t=1,v1=bad")
	if !errors.Is(err, service.ErrWebhookVerification) {
		t.Fatalf("expected ErrWebhookVerification, got %v", err)
	}

	rejected := h.Auditor.ByCategory(domain.AnomalyWebhookRejected)
	if len(rejected) != 1 || rejected[0].Severity != domain.SeverityInfo {
		t.Errorf("expected one INFO rejection anomaly, got %+v", rejected)
	}

	var warned bool
	for _, e := range h.LogHook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "webhook rejected" {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning log for the rejected webhook")
	}
	if n := len(h.Orders.Orders()); n != 0 {
		t.Errorf("expected no state change, got %d orders", n)
	}
}
