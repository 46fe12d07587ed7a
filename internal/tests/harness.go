package tests

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/pricing"
	"coachpay/internal/service"
)

// Epoch is the harness clock's starting instant.
var Epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Harness wires every service to in-memory mocks.
type Harness struct {
	Clock   *clock.Manual
	Log     *logrus.Logger
	LogHook *test.Hook

	Orders    *MockOrderRepository
	Attempts  *MockTransferAttemptRepository
	Events    *MockWebhookEventRepository
	Accounts  *MockProviderAccountRepository
	Tx        *MockTxManager
	Transfers *MockTransferGateway
	Capture   *MockCaptureGateway
	AccountGW *MockAccountGateway
	Verifier  *MockWebhookVerifier
	Auditor   *RecordingAuditor
	Cache     *MockAccountCache
	Metrics   *RecordingMetrics

	Fees          pricing.FeeConfig
	SettlementCfg service.SettlementConfig

	Notifier   *service.NotificationService
	Providers  *service.ProviderService
	Settlement *service.SettlementService
	Trigger    *service.TriggerService
	Checkout   *service.CheckoutService
	Webhooks   *service.WebhookService
	Receipts   *service.ReceiptService
}

// NewHarness builds a Harness with default fees and settlement settings.
func NewHarness() *Harness {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	h := &Harness{
		Clock:     clock.NewManual(Epoch),
		Log:       log,
		LogHook:   hook,
		Orders:    NewMockOrderRepository(),
		Attempts:  NewMockTransferAttemptRepository(),
		Events:    NewMockWebhookEventRepository(),
		Accounts:  NewMockProviderAccountRepository(),
		Tx:        &MockTxManager{},
		Transfers: NewMockTransferGateway(),
		Capture:   NewMockCaptureGateway(),
		AccountGW: &MockAccountGateway{},
		Verifier:  &MockWebhookVerifier{},
		Auditor:   &RecordingAuditor{},
		Cache:     NewMockAccountCache(),
		Metrics:   NewRecordingMetrics(),
		Fees:      pricing.DefaultFeeConfig(),
		SettlementCfg: service.SettlementConfig{
			MaxAttempts:      3,
			ProcessorTimeout: time.Second,
			ClaimLease:       15 * time.Minute,
			SweepBatch:       100,
		},
	}
	h.Rewire()
	return h
}

// Rewire rebuilds the services after a field of the harness was replaced.
func (h *Harness) Rewire() {
	h.Notifier = service.NewNotificationService(h.Log)
	h.Providers = service.NewProviderService(h.Accounts, h.AccountGW, h.Cache, h.Clock, h.Log)
	h.Settlement = service.NewSettlementService(h.Orders, h.Attempts, h.Transfers, h.Auditor, h.Notifier, h.Metrics, h.Clock, h.Log, h.SettlementCfg)
	h.Trigger = service.NewTriggerService(h.Orders, h.Settlement, h.Metrics, h.Clock, h.Log, h.SettlementCfg)
	h.Checkout = service.NewCheckoutService(h.Orders, h.Tx, h.Capture, h.Providers, h.Auditor, h.Notifier, h.Fees, time.Second, h.Clock, h.Log)
	h.Webhooks = service.NewWebhookService(h.Verifier, h.Orders, h.Events, h.Tx, h.Providers, h.Auditor, h.Notifier, h.Metrics, h.Clock, h.Log)
	h.Receipts = service.NewReceiptService(h.Orders, h.Clock)
}

// EnableProvider gives a provider a payout account that can receive transfers.
func (h *Harness) EnableProvider(providerID string) *domain.ProviderAccount {
	account := &domain.ProviderAccount{
		ProviderID:     providerID,
		AccountID:      "acct_" + providerID,
		PayoutsEnabled: true,
		UpdatedAt:      h.Clock.Now(),
	}
	h.Accounts.AddAccount(account)
	return account
}

// PaidSingleOrder seeds a paid single-session order for 10000 net that ended at end.
func (h *Harness) PaidSingleOrder(id string, end time.Time) *domain.Order {
	fees, err := pricing.ComputeSingleSessionFee(10000, h.Fees)
	if err != nil {
		panic(err)
	}
	order := &domain.Order{
		ID:                id,
		BuyerID:           "buyer-1",
		ProviderID:        "coach-1",
		ProviderAccountID: "acct_coach-1",
		ScheduledStart:    end.Add(-time.Hour),
		ScheduledEnd:      end,
		Fees:              fees,
		PaymentStatus:     domain.PaymentStatusPaid,
		SettlementStatus:  domain.SettlementStatusPending,
		CaptureSessionID:  "cs_" + id,
		PaymentID:         "pi_" + id,
		SessionsBooked:    1,
		CreatedAt:         h.Clock.Now(),
		PaidAt:            h.Clock.Now(),
		UpdatedAt:         h.Clock.Now(),
	}
	h.Orders.AddOrder(order)
	return order
}

// AttemptOutcomes returns the outcomes of an order's transfer attempts, oldest first.
func (h *Harness) AttemptOutcomes(orderID string) []domain.AttemptOutcome {
	attempts, _ := h.Attempts.ListByOrder(context.Background(), orderID)
	out := make([]domain.AttemptOutcome, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, a.Outcome)
	}
	return out
}
