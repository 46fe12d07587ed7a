package domain

import "time"

// PaymentStatus represents the buyer-side state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// SettlementStatus represents the provider-side state of an order.
type SettlementStatus string

const (
	SettlementStatusPending     SettlementStatus = "PENDING"
	SettlementStatusSettling    SettlementStatus = "SETTLING"
	SettlementStatusTransferred SettlementStatus = "TRANSFERRED"
	SettlementStatusFailed      SettlementStatus = "FAILED"
	SettlementStatusBlocked     SettlementStatus = "BLOCKED"
)

// Retryable reports whether a settlement in this status may be claimed again.
func (s SettlementStatus) Retryable() bool {
	return s == SettlementStatusPending || s == SettlementStatusFailed
}

// Stage is the lifecycle projection of the payment and settlement statuses.
type Stage string

const (
	StageCreated           Stage = "CREATED"
	StageAwaitingPayment   Stage = "AWAITING_PAYMENT"
	StagePaid              Stage = "PAID"
	StageSettled           Stage = "SETTLED"
	StagePaymentFailed     Stage = "PAYMENT_FAILED"
	StageRefunded          Stage = "REFUNDED"
	StageSettlementFailed  Stage = "SETTLEMENT_FAILED"
	StageSettlementBlocked Stage = "SETTLEMENT_BLOCKED"
)

// Order is the aggregate root for a paid coaching reservation.
type Order struct {
	ID                string
	BuyerID           string
	ProviderID        string
	ProviderAccountID string // payout destination, snapshotted at checkout
	ScheduledStart    time.Time
	ScheduledEnd      time.Time
	Fees              FeeBreakdown

	PaymentStatus      PaymentStatus
	SettlementStatus   SettlementStatus
	SettlementAttempts int
	SettlingSince      time.Time

	CaptureSessionID string
	PaymentID        string
	TransferID       string

	SupersedesOrderID string
	SessionsBooked    int

	CreatedAt time.Time
	PaidAt    time.Time
	SettledAt time.Time
	UpdatedAt time.Time
}

// Stage derives the lifecycle stage. Settlement outcomes take precedence once payment is PAID.
func (o *Order) Stage() Stage {
	switch o.PaymentStatus {
	case PaymentStatusFailed:
		return StagePaymentFailed
	case PaymentStatusRefunded:
		return StageRefunded
	case PaymentStatusPending:
		if o.CaptureSessionID == "" {
			return StageCreated
		}
		return StageAwaitingPayment
	}

	switch o.SettlementStatus {
	case SettlementStatusTransferred:
		return StageSettled
	case SettlementStatusFailed:
		return StageSettlementFailed
	case SettlementStatusBlocked:
		return StageSettlementBlocked
	}
	return StagePaid
}

// SessionsComplete reports whether every session of the order has been scheduled.
func (o *Order) SessionsComplete() bool {
	if o.Fees.Kind != FeeKindPack {
		return true
	}
	return o.SessionsBooked >= o.Fees.SessionsCount
}

// EligibleForSettlement applies the settlement eligibility rule at instant now.
func (o *Order) EligibleForSettlement(now time.Time) bool {
	return o.PaymentStatus == PaymentStatusPaid &&
		o.SettlementStatus.Retryable() &&
		o.SessionsComplete() &&
		!o.ScheduledEnd.IsZero() &&
		!o.ScheduledEnd.After(now)
}

// Cancellation records why an order's payment was reversed.
type Cancellation struct {
	ID        string
	OrderID   string
	Reason    string
	CreatedAt time.Time
}

// PackSession is one scheduled session drawn from a pack order.
type PackSession struct {
	ID             string
	OrderID        string
	Index          int
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	PayoutCents    int64
}
