package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// Webhook outcomes stored in the processed-event ledger.
const (
	OutcomePaid            = "paid"
	OutcomeAlreadyPaid     = "already_paid"
	OutcomeAwaitingPayment = "awaiting_payment"
	OutcomePaymentFailed   = "payment_failed"
	OutcomeRefunded        = "refunded"
	OutcomeAccountUpdated  = "account_updated"
	OutcomeConflict        = "conflict"
	OutcomeNoop            = "noop"
	OutcomeUnmatched       = "unmatched"
	OutcomeIgnored         = "ignored"
	OutcomeDuplicate       = "duplicate"
	OutcomeRejected        = "rejected"
)

// WebhookService ingests processor notifications. Each event id is claimed in the same
// transaction as the state change it causes; side effects run only after commit.
type WebhookService struct {
	verifier  WebhookVerifier
	orders    repository.OrderRepository
	events    repository.WebhookEventRepository
	txm       repository.TxManager
	providers *ProviderService
	audit     Auditor
	notifier  *NotificationService
	metrics   Metrics
	clock     clock.Clock
	log       logrus.FieldLogger
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(
	verifier WebhookVerifier,
	orders repository.OrderRepository,
	events repository.WebhookEventRepository,
	txm repository.TxManager,
	providers *ProviderService,
	audit Auditor,
	notifier *NotificationService,
	metrics Metrics,
	clk clock.Clock,
	log logrus.FieldLogger,
) *WebhookService {
	return &WebhookService{
		verifier:  verifier,
		orders:    orders,
		events:    events,
		txm:       txm,
		providers: providers,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		clock:     clk,
		log:       log.WithField("component", "webhook"),
	}
}

// VerifyAndParse authenticates a raw notification. A rejected payload changes no state.
func (s *WebhookService) VerifyAndParse(ctx context.Context, payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	event, err := s.verifier.ParseWebhookEvent(payload, signatureHeader)
	if err == nil {
		return event, nil
	}

	s.log.WithError(err).WithField("payload_bytes", len(payload)).Warn("webhook rejected")
	s.metrics.WebhookProcessed("", OutcomeRejected)
	s.audit.Record(ctx, domain.Anomaly{
		Category: domain.AnomalyWebhookRejected,
		Severity: domain.SeverityInfo,
		Detail:   fmt.Sprintf("webhook rejected: %v", err),
	})

	if errors.Is(err, ErrWebhookVerification) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrWebhookVerification, err)
}

// effects collects work that must only happen once the transaction committed.
type effects struct {
	anomalies []domain.Anomaly
	after     []func(ctx context.Context)
}

func (e *effects) anomaly(orderID string, category domain.AnomalyCategory, severity domain.Severity, detail string) {
	e.anomalies = append(e.anomalies, domain.Anomaly{
		OrderID:  orderID,
		Category: category,
		Severity: severity,
		Detail:   detail,
	})
}

// Ingest applies a verified event. Duplicates return OutcomeDuplicate with a nil error.
func (s *WebhookService) Ingest(ctx context.Context, event *domain.WebhookEvent) (string, error) {
	log := s.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

	var (
		outcome string
		fx      effects
	)
	err := s.txm.WithTx(ctx, func(ctx context.Context) error {
		fx = effects{}
		var err error
		outcome, err = s.apply(ctx, event, &fx)
		if err != nil {
			return err
		}

		claimed, err := s.events.Claim(ctx, &domain.ProcessedEvent{
			ID:         event.ID,
			Type:       event.Type,
			Outcome:    outcome,
			ReceivedAt: s.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("claim event: %w", err)
		}
		if !claimed {
			return ErrDuplicateEvent
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateEvent) {
		log.Info("duplicate webhook event ignored")
		s.metrics.WebhookProcessed(event.Type, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		log.WithError(err).Error("webhook ingest failed")
		return "", err
	}

	for _, a := range fx.anomalies {
		s.audit.Record(ctx, a)
	}
	for _, fn := range fx.after {
		fn(ctx)
	}

	s.metrics.WebhookProcessed(event.Type, outcome)
	log.WithField("outcome", outcome).Info("webhook event processed")
	return outcome, nil
}

func (s *WebhookService) apply(ctx context.Context, event *domain.WebhookEvent, fx *effects) (string, error) {
	switch event.Type {
	case domain.EventCheckoutCompleted:
		if !event.Paid {
			return OutcomeAwaitingPayment, nil
		}
		return s.applyPaid(ctx, event, fx)
	case domain.EventPaymentSucceeded:
		return s.applyPaid(ctx, event, fx)
	case domain.EventPaymentFailed:
		return s.applyPaymentFailed(ctx, event, fx)
	case domain.EventChargeRefunded:
		return s.applyRefund(ctx, event, fx)
	case domain.EventAccountUpdated:
		return s.applyAccountUpdate(ctx, event)
	}
	return OutcomeIgnored, nil
}

// findOrder resolves the order an event refers to. A nil order with a nil error means no match.
func (s *WebhookService) findOrder(ctx context.Context, event *domain.WebhookEvent) (*domain.Order, error) {
	lookups := []struct {
		key string
		get func(context.Context, string) (*domain.Order, error)
	}{
		{event.OrderID, s.orders.GetByID},
		{event.CaptureSessionID, s.orders.GetByCaptureSessionID},
		{event.PaymentID, s.orders.GetByPaymentID},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		order, err := l.get(ctx, l.key)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *WebhookService) applyPaid(ctx context.Context, event *domain.WebhookEvent, fx *effects) (string, error) {
	order, err := s.findOrder(ctx, event)
	if err != nil || order == nil {
		return OutcomeUnmatched, err
	}

	ok, err := s.orders.MarkPaid(ctx, order.ID, event.PaymentID, s.clock.Now())
	if err != nil {
		return "", err
	}
	if ok {
		fx.after = append(fx.after, func(ctx context.Context) { _ = s.notifier.NotifyPaymentConfirmed(ctx, order) })
		return OutcomePaid, nil
	}

	switch order.PaymentStatus {
	case domain.PaymentStatusPaid:
		return OutcomeAlreadyPaid, nil
	case domain.PaymentStatusFailed:
		// A failed attempt on the same payment can still be retried and captured.
		recovered, err := s.orders.RecoverPayment(ctx, order.ID, event.PaymentID, s.clock.Now())
		if err != nil {
			return "", err
		}
		if recovered {
			fx.anomaly(order.ID, domain.AnomalyPaymentFailure, domain.SeverityInfo,
				fmt.Sprintf("payment %s succeeded after an earlier failure", event.PaymentID))
			fx.after = append(fx.after, func(ctx context.Context) { _ = s.notifier.NotifyPaymentConfirmed(ctx, order) })
			return OutcomePaid, nil
		}
		fx.anomaly(order.ID, domain.AnomalyPaymentStateConflict, domain.SeverityError,
			fmt.Sprintf("payment %s succeeded for order failed on another payment", event.PaymentID))
		return OutcomeConflict, nil
	case domain.PaymentStatusRefunded:
		fx.anomaly(order.ID, domain.AnomalyPaymentStateConflict, domain.SeverityError,
			fmt.Sprintf("payment succeeded for order in %s payment state", order.PaymentStatus))
		return OutcomeConflict, nil
	}
	return OutcomeNoop, nil
}

func (s *WebhookService) applyPaymentFailed(ctx context.Context, event *domain.WebhookEvent, fx *effects) (string, error) {
	order, err := s.findOrder(ctx, event)
	if err != nil || order == nil {
		return OutcomeUnmatched, err
	}

	ok, err := s.orders.MarkPaymentFailed(ctx, order.ID, event.PaymentID, s.clock.Now())
	if err != nil {
		return "", err
	}
	if ok {
		fx.anomaly(order.ID, domain.AnomalyPaymentFailure, domain.SeverityWarn,
			fmt.Sprintf("payment failed: %s", event.FailureReason))
		fx.after = append(fx.after, func(ctx context.Context) { _ = s.notifier.NotifyPaymentFailed(ctx, order) })
		return OutcomePaymentFailed, nil
	}

	if order.PaymentStatus == domain.PaymentStatusPaid {
		// Never downgrade a captured payment; an operator has to look at it.
		fx.anomaly(order.ID, domain.AnomalyPaymentStateConflict, domain.SeverityError,
			fmt.Sprintf("payment failure reported for paid order: %s", event.FailureReason))
		return OutcomeConflict, nil
	}
	return OutcomeNoop, nil
}

func (s *WebhookService) applyRefund(ctx context.Context, event *domain.WebhookEvent, fx *effects) (string, error) {
	order, err := s.findOrder(ctx, event)
	if err != nil || order == nil {
		return OutcomeUnmatched, err
	}

	now := s.clock.Now()
	ok, err := s.orders.MarkRefunded(ctx, order.ID, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeNoop, nil
	}

	if err := s.orders.CreateCancellation(ctx, &domain.Cancellation{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Reason:    "charge refunded",
		CreatedAt: now,
	}); err != nil {
		return "", err
	}

	if order.SettlementStatus == domain.SettlementStatusTransferred || order.SettlementStatus == domain.SettlementStatusSettling {
		fx.anomaly(order.ID, domain.AnomalyPaymentStateConflict, domain.SeverityError,
			fmt.Sprintf("charge refunded while settlement is %s", order.SettlementStatus))
	}
	fx.after = append(fx.after, func(ctx context.Context) { _ = s.notifier.NotifyOrderRefunded(ctx, order) })
	return OutcomeRefunded, nil
}

func (s *WebhookService) applyAccountUpdate(ctx context.Context, event *domain.WebhookEvent) (string, error) {
	if event.AccountID == "" {
		return OutcomeIgnored, nil
	}
	err := s.providers.ApplyAccountUpdate(ctx, event.AccountID, event.PayoutsEnabled)
	if errors.Is(err, repository.ErrNotFound) {
		return OutcomeUnmatched, nil
	}
	if err != nil {
		return "", err
	}
	return OutcomeAccountUpdated, nil
}
