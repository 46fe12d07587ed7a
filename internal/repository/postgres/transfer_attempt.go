package postgres

import (
	"context"
	"database/sql"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// TransferAttemptRepository is a PostgreSQL implementation of repository.TransferAttemptRepository.
type TransferAttemptRepository struct {
	q Querier
}

var _ repository.TransferAttemptRepository = (*TransferAttemptRepository)(nil)

// NewTransferAttemptRepository creates a new PostgreSQL transfer attempt repository.
func NewTransferAttemptRepository(db *sql.DB) *TransferAttemptRepository {
	return &TransferAttemptRepository{q: db}
}

// Append adds an attempt.
func (r *TransferAttemptRepository) Append(ctx context.Context, a *domain.TransferAttempt) error {
	query := `
		INSERT INTO transfer_attempts (id, order_id, attempt, outcome, transfer_id, error, ambiguous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := conn(ctx, r.q).ExecContext(ctx, query,
		a.ID,
		a.OrderID,
		a.Attempt,
		a.Outcome,
		nullString(a.TransferID),
		nullString(a.Error),
		a.Ambiguous,
		a.CreatedAt,
	)
	return err
}

// ListByOrder returns the attempts for an order, oldest first.
func (r *TransferAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.TransferAttempt, error) {
	query := `
		SELECT id, order_id, attempt, outcome, transfer_id, error, ambiguous, created_at
		FROM transfer_attempts WHERE order_id = $1
		ORDER BY created_at, attempt
	`

	rows, err := conn(ctx, r.q).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.TransferAttempt
	for rows.Next() {
		var (
			a                  domain.TransferAttempt
			transferID, errMsg sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Attempt, &a.Outcome, &transferID, &errMsg, &a.Ambiguous, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TransferID = transferID.String
		a.Error = errMsg.String
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}
