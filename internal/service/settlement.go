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
	"coachpay/internal/repository"
)

// SettlementConfig bounds the transfer executor and the sweep.
type SettlementConfig struct {
	MaxAttempts      int
	ProcessorTimeout time.Duration
	ClaimLease       time.Duration
	SweepBatch       int
}

// DefaultSettlementConfig returns production defaults.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		MaxAttempts:      5,
		ProcessorTimeout: 15 * time.Second,
		ClaimLease:       15 * time.Minute,
		SweepBatch:       100,
	}
}

// SettlementResult reports what a Settle call did.
type SettlementResult struct {
	OrderID    string
	Status     domain.SettlementStatus
	TransferID string
	Attempt    int

	// Duplicate is set when another caller already owns or finished the settlement.
	Duplicate bool
	// Reconciled is set when an existing processor transfer was adopted instead of issuing a new one.
	Reconciled bool
}

// SettlementService is the transfer executor: it moves a paid order's provider net
// to the provider exactly once.
type SettlementService struct {
	orders    repository.OrderRepository
	attempts  repository.TransferAttemptRepository
	transfers TransferGateway
	audit     Auditor
	notifier  *NotificationService
	metrics   Metrics
	clock     clock.Clock
	log       logrus.FieldLogger
	cfg       SettlementConfig
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(
	orders repository.OrderRepository,
	attempts repository.TransferAttemptRepository,
	transfers TransferGateway,
	audit Auditor,
	notifier *NotificationService,
	metrics Metrics,
	clk clock.Clock,
	log logrus.FieldLogger,
	cfg SettlementConfig,
) *SettlementService {
	return &SettlementService{
		orders:    orders,
		attempts:  attempts,
		transfers: transfers,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		clock:     clk,
		log:       log.WithField("component", "settlement"),
		cfg:       cfg,
	}
}

// Settle transfers the provider net of an eligible order. Concurrent and repeated calls
// are safe: only the caller that wins the claim talks to the processor.
func (s *SettlementService) Settle(ctx context.Context, orderID string) (*SettlementResult, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	claimed, err := s.orders.ClaimSettlement(ctx, orderID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("claim settlement: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !claimed {
		return s.unclaimed(order)
	}
	return s.execute(ctx, order)
}

// unclaimed explains why an order could not be claimed.
func (s *SettlementService) unclaimed(order *domain.Order) (*SettlementResult, error) {
	result := &SettlementResult{
		OrderID:    order.ID,
		Status:     order.SettlementStatus,
		TransferID: order.TransferID,
		Attempt:    order.SettlementAttempts,
	}

	switch order.SettlementStatus {
	case domain.SettlementStatusSettling, domain.SettlementStatusTransferred:
		result.Duplicate = true
		return result, nil
	case domain.SettlementStatusBlocked:
		return result, ErrSettlementBlocked
	}
	return result, ErrOrderNotEligible
}

// execute runs one transfer attempt for an order this caller has claimed.
func (s *SettlementService) execute(ctx context.Context, order *domain.Order) (*SettlementResult, error) {
	attempt := order.SettlementAttempts
	log := s.log.WithFields(logrus.Fields{"order_id": order.ID, "attempt": attempt})

	if err := order.Fees.Validate(); err != nil {
		s.audit.Record(ctx, domain.Anomaly{
			OrderID:  order.ID,
			Category: domain.AnomalyNegativeMargin,
			Severity: domain.SeverityError,
			Detail:   fmt.Sprintf("fee snapshot rejected before transfer: %v", err),
		})
		return s.block(ctx, order, attempt, err)
	}

	if attempt > 1 {
		existing, err := s.lookup(ctx, order)
		if err != nil {
			log.WithError(err).Warn("transfer lookup failed")
			return s.fail(ctx, order, attempt, fmt.Errorf("lookup before retry: %w", err))
		}
		if existing != nil {
			log.WithField("transfer_id", existing.ID).Info("adopting existing transfer")
			return s.complete(ctx, order, attempt, existing.ID, true)
		}
	}

	tctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	transfer, err := s.transfers.CreateTransfer(tctx, TransferRequest{
		OrderID:        order.ID,
		Destination:    order.ProviderAccountID,
		AmountCents:    order.Fees.ProviderNetCents,
		Currency:       order.Fees.Currency,
		TransferGroup:  TransferGroup(order.ID),
		IdempotencyKey: TransferIdempotencyKey(order.ID, attempt),
	})
	cancel()
	if err != nil {
		return s.fail(ctx, order, attempt, err)
	}

	return s.complete(ctx, order, attempt, transfer.ID, false)
}

func (s *SettlementService) lookup(ctx context.Context, order *domain.Order) (*Transfer, error) {
	tctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessorTimeout)
	defer cancel()
	return s.transfers.FindTransfer(tctx, TransferGroup(order.ID))
}

func (s *SettlementService) complete(ctx context.Context, order *domain.Order, attempt int, transferID string, reconciled bool) (*SettlementResult, error) {
	// The transfer exists at the processor now; record it even if the caller went away.
	ctx = context.WithoutCancel(ctx)
	now := s.clock.Now()

	if err := s.attempts.Append(ctx, &domain.TransferAttempt{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Attempt:    attempt,
		Outcome:    domain.AttemptSuccess,
		TransferID: transferID,
		CreatedAt:  now,
	}); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Error("failed to append transfer attempt")
	}

	if err := s.orders.CompleteSettlement(ctx, order.ID, transferID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return &SettlementResult{OrderID: order.ID, TransferID: transferID, Attempt: attempt, Duplicate: true}, nil
		}
		// The claim stays SETTLING; the stale-claim sweep reconciles it through the lookup.
		return nil, fmt.Errorf("complete settlement: %w", err)
	}

	s.metrics.SettlementOutcome(domain.SettlementStatusTransferred)
	s.log.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"attempt":     attempt,
		"transfer_id": transferID,
	}).Info("settlement transferred")
	_ = s.notifier.NotifyPayoutSent(ctx, order)

	return &SettlementResult{
		OrderID:    order.ID,
		Status:     domain.SettlementStatusTransferred,
		TransferID: transferID,
		Attempt:    attempt,
		Reconciled: reconciled,
	}, nil
}

func (s *SettlementService) fail(ctx context.Context, order *domain.Order, attempt int, cause error) (*SettlementResult, error) {
	ctx = context.WithoutCancel(ctx)
	if attempt >= s.cfg.MaxAttempts {
		return s.block(ctx, order, attempt, cause)
	}

	s.recordFailure(ctx, order, attempt, cause)
	if err := s.orders.FailSettlement(ctx, order.ID, domain.SettlementStatusFailed, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("fail settlement: %w", err)
	}

	s.metrics.SettlementOutcome(domain.SettlementStatusFailed)
	s.audit.Record(ctx, domain.Anomaly{
		OrderID:  order.ID,
		Category: domain.AnomalyTransferFailure,
		Severity: domain.SeverityWarn,
		Detail:   fmt.Sprintf("attempt %d failed: %v", attempt, cause),
	})
	_ = s.notifier.NotifyPayoutPending(ctx, order)

	return &SettlementResult{OrderID: order.ID, Status: domain.SettlementStatusFailed, Attempt: attempt},
		fmt.Errorf("%w: %w", ErrTransferFailed, cause)
}

func (s *SettlementService) block(ctx context.Context, order *domain.Order, attempt int, cause error) (*SettlementResult, error) {
	s.recordFailure(ctx, order, attempt, cause)
	if err := s.orders.FailSettlement(ctx, order.ID, domain.SettlementStatusBlocked, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("block settlement: %w", err)
	}

	s.metrics.SettlementOutcome(domain.SettlementStatusBlocked)
	s.audit.Record(ctx, domain.Anomaly{
		OrderID:  order.ID,
		Category: domain.AnomalySettlementBlocked,
		Severity: domain.SeverityError,
		Detail:   fmt.Sprintf("settlement blocked after attempt %d: %v", attempt, cause),
	})
	_ = s.notifier.NotifyPayoutPending(ctx, order)

	return &SettlementResult{OrderID: order.ID, Status: domain.SettlementStatusBlocked, Attempt: attempt},
		fmt.Errorf("%w: %w", ErrSettlementBlocked, cause)
}

func (s *SettlementService) recordFailure(ctx context.Context, order *domain.Order, attempt int, cause error) {
	ambiguous := isAmbiguous(cause)
	s.log.WithError(cause).WithFields(logrus.Fields{
		"order_id":  order.ID,
		"attempt":   attempt,
		"ambiguous": ambiguous,
	}).Warn("transfer attempt failed")

	if err := s.attempts.Append(ctx, &domain.TransferAttempt{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Attempt:   attempt,
		Outcome:   domain.AttemptFailure,
		Error:     cause.Error(),
		Ambiguous: ambiguous,
		CreatedAt: s.clock.Now(),
	}); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Error("failed to append transfer attempt")
	}
}

// isAmbiguous reports whether the processor may have executed the request despite the error.
func isAmbiguous(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrProcessorUnavailable)
}
