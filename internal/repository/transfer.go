package repository

import (
	"context"

	"coachpay/internal/domain"
)

// TransferAttemptRepository is the append-only log of transfer attempts.
type TransferAttemptRepository interface {
	// Append adds an attempt.
	Append(ctx context.Context, attempt *domain.TransferAttempt) error

	// ListByOrder returns the attempts for an order, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]*domain.TransferAttempt, error)
}
