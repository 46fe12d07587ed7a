package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

const orderColumns = `
	id, buyer_id, provider_id, provider_account_id, scheduled_start, scheduled_end,
	fee_kind, sessions_count, provider_net_cents, processor_fee_cents, platform_fee_cents,
	buyer_service_fee_cents, buyer_total_cents, raw_margin_cents,
	per_session_payout_cents, payout_remainder_cents, currency, rounding_mode,
	payment_status, settlement_status, settlement_attempts, settling_since,
	capture_session_id, payment_id, transfer_id, supersedes_order_id, sessions_booked,
	created_at, paid_at, settled_at, updated_at`

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

// Create persists a new order with its fee snapshot.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, buyer_id, provider_id, provider_account_id, scheduled_start, scheduled_end,
			fee_kind, sessions_count, provider_net_cents, processor_fee_cents, platform_fee_cents,
			buyer_service_fee_cents, buyer_total_cents, raw_margin_cents,
			per_session_payout_cents, payout_remainder_cents, currency, rounding_mode,
			payment_status, settlement_status, supersedes_order_id, sessions_booked,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23
		)
	`

	f := order.Fees
	_, err := conn(ctx, r.q).ExecContext(ctx, query,
		order.ID,
		order.BuyerID,
		order.ProviderID,
		order.ProviderAccountID,
		nullTime(order.ScheduledStart),
		nullTime(order.ScheduledEnd),
		f.Kind,
		f.SessionsCount,
		f.ProviderNetCents,
		f.ProcessorFeeCents,
		f.PlatformFeeCents,
		f.BuyerServiceFeeCents,
		f.BuyerTotalCents,
		f.RawMarginCents,
		f.PerSessionPayoutCents,
		f.PayoutRemainderCents,
		f.Currency,
		f.RoundingMode,
		order.PaymentStatus,
		order.SettlementStatus,
		nullString(order.SupersedesOrderID),
		order.SessionsBooked,
		order.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByCaptureSessionID retrieves an order by its capture session reference.
func (r *OrderRepository) GetByCaptureSessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE capture_session_id = $1`, sessionID)
}

// GetByPaymentID retrieves an order by its captured payment reference.
func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(conn(ctx, r.q).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// SetCaptureSession stores the capture session id once.
func (r *OrderRepository) SetCaptureSession(ctx context.Context, id, sessionID string) error {
	query := `
		UPDATE orders SET capture_session_id = $2, updated_at = NOW()
		WHERE id = $1 AND (capture_session_id IS NULL OR capture_session_id = $2)
	`

	result, err := conn(ctx, r.q).ExecContext(ctx, query, id, sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadySet
		}
		return err
	}
	ok, err := affected(result)
	if err != nil || ok {
		return err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return repository.ErrAlreadySet
}

// MarkPaid moves payment PENDING -> PAID.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $2, payment_id = $3, paid_at = $4, updated_at = $4
		WHERE id = $1 AND payment_status = $5
	`
	return r.exec(ctx, query, id, domain.PaymentStatusPaid, nullString(paymentID), at, domain.PaymentStatusPending)
}

// MarkPaymentFailed moves payment PENDING -> FAILED.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $2, payment_id = COALESCE(payment_id, $3), updated_at = $4
		WHERE id = $1 AND payment_status = $5
	`
	return r.exec(ctx, query, id, domain.PaymentStatusFailed, nullString(paymentID), at, domain.PaymentStatusPending)
}

// RecoverPayment moves payment FAILED -> PAID for the payment that failed.
func (r *OrderRepository) RecoverPayment(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	if paymentID == "" {
		return false, nil
	}
	query := `
		UPDATE orders
		SET payment_status = $2, paid_at = $4, updated_at = $4
		WHERE id = $1 AND payment_status = $5 AND payment_id = $3
	`
	return r.exec(ctx, query, id, domain.PaymentStatusPaid, paymentID, at, domain.PaymentStatusFailed)
}

// MarkRefunded moves payment PAID -> REFUNDED.
func (r *OrderRepository) MarkRefunded(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE orders SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4
	`
	return r.exec(ctx, query, id, domain.PaymentStatusRefunded, at, domain.PaymentStatusPaid)
}

// ClaimSettlement moves settlement PENDING|FAILED -> SETTLING for an eligible order.
func (r *OrderRepository) ClaimSettlement(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET settlement_status = $2, settlement_attempts = settlement_attempts + 1,
			settling_since = $3, updated_at = $3
		WHERE id = $1
			AND payment_status = $4
			AND settlement_status IN ($5, $6)
			AND scheduled_end IS NOT NULL AND scheduled_end <= $3
			AND sessions_booked >= sessions_count
	`
	return r.exec(ctx, query, id,
		domain.SettlementStatusSettling, now,
		domain.PaymentStatusPaid,
		domain.SettlementStatusPending, domain.SettlementStatusFailed,
	)
}

// CompleteSettlement moves SETTLING -> TRANSFERRED and stores the transfer id.
func (r *OrderRepository) CompleteSettlement(ctx context.Context, id, transferID string, at time.Time) error {
	query := `
		UPDATE orders
		SET settlement_status = $2, transfer_id = $3, settled_at = $4,
			settling_since = NULL, updated_at = $4
		WHERE id = $1 AND settlement_status = $5
	`
	ok, err := r.exec(ctx, query, id, domain.SettlementStatusTransferred, transferID, at, domain.SettlementStatusSettling)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

// FailSettlement moves SETTLING -> status.
func (r *OrderRepository) FailSettlement(ctx context.Context, id string, status domain.SettlementStatus, at time.Time) error {
	query := `
		UPDATE orders
		SET settlement_status = $2, settling_since = NULL, updated_at = $3
		WHERE id = $1 AND settlement_status = $4
	`
	ok, err := r.exec(ctx, query, id, status, at, domain.SettlementStatusSettling)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

// ReclaimSettlement refreshes a stale SETTLING claim. The settlingSince guard makes
// concurrent reclaimers race on the same lease value.
func (r *OrderRepository) ReclaimSettlement(ctx context.Context, id string, settlingSince, now time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET settling_since = $3, settlement_attempts = settlement_attempts + 1, updated_at = $3
		WHERE id = $1 AND settlement_status = $4 AND settling_since = $2
	`
	return r.exec(ctx, query, id, settlingSince, now, domain.SettlementStatusSettling)
}

// Unblock moves BLOCKED -> FAILED and resets the attempt counter.
func (r *OrderRepository) Unblock(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET settlement_status = $2, settlement_attempts = 0, updated_at = $3
		WHERE id = $1 AND settlement_status = $4
	`
	return r.exec(ctx, query, id, domain.SettlementStatusFailed, at, domain.SettlementStatusBlocked)
}

// ListEligibleForSettlement returns ids of paid orders whose sessions are over.
func (r *OrderRepository) ListEligibleForSettlement(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM orders
		WHERE payment_status = $1
			AND settlement_status IN ($2, $3)
			AND scheduled_end IS NOT NULL AND scheduled_end <= $4
			AND sessions_booked >= sessions_count
		ORDER BY scheduled_end
		LIMIT $5
	`

	rows, err := conn(ctx, r.q).QueryContext(ctx, query,
		domain.PaymentStatusPaid,
		domain.SettlementStatusPending, domain.SettlementStatusFailed,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStaleSettling returns orders stuck in SETTLING since before olderThan.
func (r *OrderRepository) ListStaleSettling(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT` + orderColumns + `
		FROM orders
		WHERE settlement_status = $1 AND settling_since < $2
		ORDER BY settling_since
		LIMIT $3
	`

	rows, err := conn(ctx, r.q).QueryContext(ctx, query, domain.SettlementStatusSettling, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// IncrementSessionsBooked reserves the next pack session slot and widens the scheduled window.
func (r *OrderRepository) IncrementSessionsBooked(ctx context.Context, id string, start, end time.Time) (int, error) {
	query := `
		UPDATE orders
		SET sessions_booked = sessions_booked + 1,
			scheduled_start = LEAST(scheduled_start, $2),
			scheduled_end = GREATEST(scheduled_end, $3),
			updated_at = NOW()
		WHERE id = $1 AND fee_kind = $4 AND sessions_booked < sessions_count
		RETURNING sessions_booked - 1
	`

	var index int
	err := conn(ctx, r.q).QueryRowContext(ctx, query, id, start, end, domain.FeeKindPack).Scan(&index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrConflict
		}
		return 0, err
	}
	return index, nil
}

// CreatePackSession persists a booked pack session.
func (r *OrderRepository) CreatePackSession(ctx context.Context, s *domain.PackSession) error {
	query := `
		INSERT INTO pack_sessions (id, order_id, session_index, scheduled_start, scheduled_end, payout_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.q).ExecContext(ctx, query,
		s.ID, s.OrderID, s.Index, s.ScheduledStart, s.ScheduledEnd, s.PayoutCents,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// CreateCancellation records a payment reversal.
func (r *OrderRepository) CreateCancellation(ctx context.Context, c *domain.Cancellation) error {
	query := `INSERT INTO order_cancellations (id, order_id, reason, created_at) VALUES ($1, $2, $3, $4)`

	_, err := conn(ctx, r.q).ExecContext(ctx, query, c.ID, c.OrderID, c.Reason, c.CreatedAt)
	return err
}

func (r *OrderRepository) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := conn(ctx, r.q).ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return affected(result)
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                                           domain.Order
		start, end, settlingSince, paidAt, settled  sql.NullTime
		captureID, paymentID, transferID, supersede sql.NullString
	)

	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.ProviderID,
		&o.ProviderAccountID,
		&start,
		&end,
		&o.Fees.Kind,
		&o.Fees.SessionsCount,
		&o.Fees.ProviderNetCents,
		&o.Fees.ProcessorFeeCents,
		&o.Fees.PlatformFeeCents,
		&o.Fees.BuyerServiceFeeCents,
		&o.Fees.BuyerTotalCents,
		&o.Fees.RawMarginCents,
		&o.Fees.PerSessionPayoutCents,
		&o.Fees.PayoutRemainderCents,
		&o.Fees.Currency,
		&o.Fees.RoundingMode,
		&o.PaymentStatus,
		&o.SettlementStatus,
		&o.SettlementAttempts,
		&settlingSince,
		&captureID,
		&paymentID,
		&transferID,
		&supersede,
		&o.SessionsBooked,
		&o.CreatedAt,
		&paidAt,
		&settled,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.ScheduledStart = start.Time
	o.ScheduledEnd = end.Time
	o.SettlingSince = settlingSince.Time
	o.PaidAt = paidAt.Time
	o.SettledAt = settled.Time
	o.CaptureSessionID = captureID.String
	o.PaymentID = paymentID.String
	o.TransferID = transferID.String
	o.SupersedesOrderID = supersede.String
	return &o, nil
}
