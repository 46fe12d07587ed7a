package repository

import (
	"context"
	"time"

	"coachpay/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
// Every status mutation is a conditional update: the bool result reports whether a row changed.
type OrderRepository interface {
	// Create persists a new order with its fee snapshot.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByCaptureSessionID retrieves an order by its capture session reference.
	GetByCaptureSessionID(ctx context.Context, sessionID string) (*domain.Order, error)

	// GetByPaymentID retrieves an order by its captured payment reference.
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)

	// SetCaptureSession stores the capture session id once.
	// Returns ErrAlreadySet if a different id is already stored.
	SetCaptureSession(ctx context.Context, id, sessionID string) error

	// MarkPaid moves payment PENDING -> PAID.
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error)

	// MarkPaymentFailed moves payment PENDING -> FAILED and keeps the failed payment reference,
	// unless one is already stored.
	MarkPaymentFailed(ctx context.Context, id, paymentID string, at time.Time) (bool, error)

	// RecoverPayment moves payment FAILED -> PAID when paymentID is the payment that failed.
	RecoverPayment(ctx context.Context, id, paymentID string, at time.Time) (bool, error)

	// MarkRefunded moves payment PAID -> REFUNDED.
	MarkRefunded(ctx context.Context, id string, at time.Time) (bool, error)

	// ClaimSettlement moves settlement PENDING|FAILED -> SETTLING for an eligible order
	// and increments the attempt counter. Only one concurrent caller can win.
	ClaimSettlement(ctx context.Context, id string, now time.Time) (bool, error)

	// CompleteSettlement moves SETTLING -> TRANSFERRED and stores the transfer id.
	// Returns ErrConflict if the order is no longer SETTLING.
	CompleteSettlement(ctx context.Context, id, transferID string, at time.Time) error

	// FailSettlement moves SETTLING -> status (FAILED or BLOCKED).
	// Returns ErrConflict if the order is no longer SETTLING.
	FailSettlement(ctx context.Context, id string, status domain.SettlementStatus, at time.Time) error

	// ReclaimSettlement refreshes a stale SETTLING claim whose lease started at settlingSince.
	ReclaimSettlement(ctx context.Context, id string, settlingSince, now time.Time) (bool, error)

	// Unblock moves BLOCKED -> FAILED and resets the attempt counter after operator review.
	Unblock(ctx context.Context, id string, at time.Time) (bool, error)

	// ListEligibleForSettlement returns ids of paid orders whose sessions are over.
	ListEligibleForSettlement(ctx context.Context, now time.Time, limit int) ([]string, error)

	// ListStaleSettling returns orders stuck in SETTLING since before olderThan.
	ListStaleSettling(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)

	// IncrementSessionsBooked reserves the next pack session slot and widens the scheduled window.
	// Returns the zero-based index of the reserved session, or ErrConflict when the pack is full.
	IncrementSessionsBooked(ctx context.Context, id string, start, end time.Time) (int, error)

	// CreatePackSession persists a booked pack session.
	CreatePackSession(ctx context.Context, session *domain.PackSession) error

	// CreateCancellation records a payment reversal.
	CreateCancellation(ctx context.Context, c *domain.Cancellation) error
}
