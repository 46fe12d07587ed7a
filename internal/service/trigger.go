package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// SweepResult summarizes one pass of the settlement sweep.
type SweepResult struct {
	Reclaimed   int `json:"reclaimed"`
	Attempted   int `json:"attempted"`
	Transferred int `json:"transferred"`
	Failed      int `json:"failed"`
	Blocked     int `json:"blocked"`
	Skipped     int `json:"skipped"`
}

// TriggerService decides when orders are settled: periodically through Sweep
// and on demand through MarkComplete.
type TriggerService struct {
	orders     repository.OrderRepository
	settlement *SettlementService
	metrics    Metrics
	clock      clock.Clock
	log        logrus.FieldLogger
	cfg        SettlementConfig
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(
	orders repository.OrderRepository,
	settlement *SettlementService,
	metrics Metrics,
	clk clock.Clock,
	log logrus.FieldLogger,
	cfg SettlementConfig,
) *TriggerService {
	return &TriggerService{
		orders:     orders,
		settlement: settlement,
		metrics:    metrics,
		clock:      clk,
		log:        log.WithField("component", "trigger"),
		cfg:        cfg,
	}
}

// Sweep recovers stale claims, then settles every eligible order in one batch.
// A failing order never stops the sweep.
func (s *TriggerService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := s.clock.Now()
	result := &SweepResult{}

	if err := s.reclaimStale(ctx, result); err != nil {
		return result, err
	}

	ids, err := s.orders.ListEligibleForSettlement(ctx, s.clock.Now(), s.cfg.SweepBatch)
	if err != nil {
		return result, fmt.Errorf("list eligible orders: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		res, err := s.settlement.Settle(ctx, id)
		tally(result, res, err)
		if err != nil {
			s.log.WithError(err).WithField("order_id", id).Warn("settlement attempt failed")
		}
	}

	s.metrics.SweepFinished(s.clock.Now().Sub(start), result.Attempted+result.Reclaimed)
	s.log.WithFields(logrus.Fields{
		"reclaimed":   result.Reclaimed,
		"attempted":   result.Attempted,
		"transferred": result.Transferred,
		"failed":      result.Failed,
		"blocked":     result.Blocked,
		"skipped":     result.Skipped,
	}).Info("settlement sweep finished")

	return result, ctx.Err()
}

// reclaimStale takes over SETTLING claims older than the lease. The executor then looks
// the transfer up before issuing a new one.
func (s *TriggerService) reclaimStale(ctx context.Context, result *SweepResult) error {
	now := s.clock.Now()
	stale, err := s.orders.ListStaleSettling(ctx, now.Add(-s.cfg.ClaimLease), s.cfg.SweepBatch)
	if err != nil {
		return fmt.Errorf("list stale claims: %w", err)
	}

	for _, order := range stale {
		ok, err := s.orders.ReclaimSettlement(ctx, order.ID, order.SettlingSince, now)
		if err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Error("failed to reclaim settlement")
			continue
		}
		if !ok {
			continue
		}

		reclaimed, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Error("failed to reload reclaimed order")
			continue
		}

		result.Reclaimed++
		s.log.WithFields(logrus.Fields{
			"order_id":       order.ID,
			"settling_since": order.SettlingSince,
		}).Warn("reclaiming stale settlement claim")

		res, err := s.settlement.execute(ctx, reclaimed)
		tally(result, res, err)
	}
	return nil
}

func tally(result *SweepResult, res *SettlementResult, err error) {
	switch {
	case res == nil:
		result.Failed++
	case res.Duplicate:
		result.Skipped++
	case res.Status == domain.SettlementStatusTransferred:
		result.Transferred++
	case res.Status == domain.SettlementStatusBlocked:
		result.Blocked++
	case errors.Is(err, ErrOrderNotEligible):
		result.Skipped++
	default:
		result.Failed++
	}
}

// MarkComplete lets the buyer or the provider confirm delivery, settling the order
// immediately instead of waiting for the next sweep.
func (s *TriggerService) MarkComplete(ctx context.Context, orderID, actorID string) (*SettlementResult, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || (actorID != order.BuyerID && actorID != order.ProviderID) {
		return nil, ErrNotOrderParty
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}

	switch order.SettlementStatus {
	case domain.SettlementStatusTransferred, domain.SettlementStatusSettling:
		return &SettlementResult{
			OrderID:    order.ID,
			Status:     order.SettlementStatus,
			TransferID: order.TransferID,
			Attempt:    order.SettlementAttempts,
			Duplicate:  true,
		}, nil
	case domain.SettlementStatusBlocked:
		return nil, ErrSettlementBlocked
	}

	if !order.EligibleForSettlement(s.clock.Now()) {
		return nil, ErrOrderNotEligible
	}

	s.log.WithFields(logrus.Fields{"order_id": orderID, "actor_id": actorID}).Info("order marked complete")
	return s.settlement.Settle(ctx, orderID)
}

// Unblock returns a BLOCKED order to FAILED after operator review, making it eligible again.
func (s *TriggerService) Unblock(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	ok, err := s.orders.Unblock(ctx, orderID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotEligible
	}

	s.log.WithField("order_id", orderID).Info("settlement unblocked")
	return order, nil
}
