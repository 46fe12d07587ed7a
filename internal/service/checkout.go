package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/pricing"
	"coachpay/internal/repository"
)

// CheckoutRequest contains the parameters for buying a session or a pack.
type CheckoutRequest struct {
	BuyerID          string
	ProviderID       string
	Kind             domain.FeeKind
	ProviderNetCents int64
	SessionsCount    int

	// Single sessions only; pack sessions are booked after payment.
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// CheckoutResult is an order together with the hosted payment page the buyer is sent to.
type CheckoutResult struct {
	Order      *domain.Order
	CaptureURL string
}

// CheckoutService creates orders and collects buyer payments.
type CheckoutService struct {
	orders    repository.OrderRepository
	txm       repository.TxManager
	capture   CaptureGateway
	providers *ProviderService
	audit     Auditor
	notifier  *NotificationService
	fees      pricing.FeeConfig
	timeout   time.Duration
	clock     clock.Clock
	log       logrus.FieldLogger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	orders repository.OrderRepository,
	txm repository.TxManager,
	capture CaptureGateway,
	providers *ProviderService,
	audit Auditor,
	notifier *NotificationService,
	fees pricing.FeeConfig,
	processorTimeout time.Duration,
	clk clock.Clock,
	log logrus.FieldLogger,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		txm:       txm,
		capture:   capture,
		providers: providers,
		audit:     audit,
		notifier:  notifier,
		fees:      fees,
		timeout:   processorTimeout,
		clock:     clk,
		log:       log.WithField("component", "checkout"),
	}
}

// Quote computes a breakdown with the current fee configuration without creating anything.
func (s *CheckoutService) Quote(kind domain.FeeKind, providerNetCents int64, sessionsCount int) (domain.FeeBreakdown, error) {
	switch kind {
	case domain.FeeKindSingle:
		return pricing.ComputeSingleSessionFee(providerNetCents, s.fees)
	case domain.FeeKindPack:
		return pricing.ComputePackFee(providerNetCents, sessionsCount, s.fees)
	}
	return domain.FeeBreakdown{}, ErrInvalidFeeKind
}

// CreateOrder snapshots the fee breakdown into a new order and opens a capture session for it.
func (s *CheckoutService) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.BuyerID == "" {
		return nil, ErrInvalidBuyerID
	}
	if req.ProviderID == "" {
		return nil, ErrInvalidProviderID
	}

	fees, err := s.Quote(req.Kind, req.ProviderNetCents, req.SessionsCount)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:               uuid.New().String(),
		BuyerID:          req.BuyerID,
		ProviderID:       req.ProviderID,
		Fees:             fees,
		PaymentStatus:    domain.PaymentStatusPending,
		SettlementStatus: domain.SettlementStatusPending,
	}

	if req.Kind == domain.FeeKindSingle {
		if req.ScheduledStart.IsZero() || !req.ScheduledEnd.After(req.ScheduledStart) {
			return nil, ErrInvalidSchedule
		}
		order.ScheduledStart = req.ScheduledStart
		order.ScheduledEnd = req.ScheduledEnd
		order.SessionsBooked = 1
	}

	account, err := s.providers.PayoutAccount(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if !account.PayoutsEnabled {
		return nil, ErrPayoutsDisabled
	}
	order.ProviderAccountID = account.AccountID

	now := s.clock.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"kind":        fees.Kind,
		"buyer_total": fees.BuyerTotalCents,
	}).Info("order created")

	if category, severity, ok := fees.MarginAnomaly(); ok {
		s.audit.Record(ctx, domain.Anomaly{
			OrderID:  order.ID,
			Category: category,
			Severity: severity,
			Detail: fmt.Sprintf("platform margin %d (raw %d) on provider net %d %s",
				fees.PlatformFeeCents, fees.RawMarginCents, fees.ProviderNetCents, fees.Currency),
		})
	}

	return s.openCapture(ctx, order)
}

// GetOrder retrieves an order by ID.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	return s.orders.GetByID(ctx, orderID)
}

func (s *CheckoutService) openCapture(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.capture.CreateCaptureSession(tctx, CaptureRequest{
		OrderID:       order.ID,
		Description:   sessionLabel(order.Fees),
		AmountCents:   order.Fees.BuyerTotalCents,
		Currency:      order.Fees.Currency,
		TransferGroup: TransferGroup(order.ID),

		DestinationAccountID: order.ProviderAccountID,
		ApplicationFeeCents:  order.Fees.PlatformFeeCents,
	})
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Error("failed to open capture session")
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	if err := s.orders.SetCaptureSession(ctx, order.ID, session.ID); err != nil {
		return nil, err
	}
	order.CaptureSessionID = session.ID

	return &CheckoutResult{Order: order, CaptureURL: session.URL}, nil
}

// ConfirmCheckout handles the buyer's success redirect. The processor is asked directly,
// so the order can be confirmed before the webhook arrives; both paths are idempotent.
func (s *CheckoutService) ConfirmCheckout(ctx context.Context, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, ErrPaymentNotCompleted
	}

	order, err := s.orders.GetByCaptureSessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return order, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	session, err := s.capture.GetCaptureSession(tctx, sessionID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("get capture session: %w", err)
	}
	if !session.Paid {
		return nil, ErrPaymentNotCompleted
	}

	ok, err := s.orders.MarkPaid(ctx, order.ID, session.PaymentID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.log.WithField("order_id", order.ID).Info("payment confirmed by redirect")
		_ = s.notifier.NotifyPaymentConfirmed(ctx, updated)
	} else if updated.PaymentStatus != domain.PaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}
	return updated, nil
}

// RetryPayment starts a new payment attempt for an order whose payment failed. The new order
// supersedes the failed one and reuses its fee snapshot, so the buyer is charged the quoted price.
func (s *CheckoutService) RetryPayment(ctx context.Context, orderID, buyerID string) (*CheckoutResult, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	previous, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if buyerID != previous.BuyerID {
		return nil, ErrNotOrderParty
	}

	if previous.PaymentStatus == domain.PaymentStatusPending && previous.CaptureSessionID == "" {
		return s.openCapture(ctx, previous)
	}
	if previous.PaymentStatus != domain.PaymentStatusFailed {
		return nil, ErrOrderNotRetryable
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:                uuid.New().String(),
		BuyerID:           previous.BuyerID,
		ProviderID:        previous.ProviderID,
		ProviderAccountID: previous.ProviderAccountID,
		ScheduledStart:    previous.ScheduledStart,
		ScheduledEnd:      previous.ScheduledEnd,
		Fees:              previous.Fees,
		PaymentStatus:     domain.PaymentStatusPending,
		SettlementStatus:  domain.SettlementStatusPending,
		SupersedesOrderID: previous.ID,
		SessionsBooked:    previous.SessionsBooked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create superseding order: %w", err)
	}
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "supersedes": previous.ID}).Info("payment retry order created")

	return s.openCapture(ctx, order)
}

// BookPackSession schedules the next session of a paid pack. The last booking fixes the
// order's scheduled end, which makes the pack eligible for settlement once it has passed.
func (s *CheckoutService) BookPackSession(ctx context.Context, orderID, actorID string, start, end time.Time) (*domain.PackSession, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	if start.IsZero() || !end.After(start) {
		return nil, ErrInvalidSchedule
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != order.BuyerID && actorID != order.ProviderID {
		return nil, ErrNotOrderParty
	}
	if order.Fees.Kind != domain.FeeKindPack {
		return nil, ErrNotPackOrder
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}

	var session *domain.PackSession
	err = s.txm.WithTx(ctx, func(ctx context.Context) error {
		index, err := s.orders.IncrementSessionsBooked(ctx, order.ID, start, end)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrOrderNotEligible
			}
			return err
		}

		session = &domain.PackSession{
			ID:             uuid.New().String(),
			OrderID:        order.ID,
			Index:          index,
			ScheduledStart: start,
			ScheduledEnd:   end,
			PayoutCents:    order.Fees.SessionPayouts()[index],
		}
		return s.orders.CreatePackSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"order_id": order.ID, "session_index": session.Index}).Info("pack session booked")
	_ = s.notifier.NotifySessionBooked(ctx, order, session)
	return session, nil
}
