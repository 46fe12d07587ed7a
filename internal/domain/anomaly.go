package domain

import "time"

// AnomalyCategory classifies an audit record.
type AnomalyCategory string

const (
	AnomalyZeroMargin           AnomalyCategory = "ZERO_MARGIN"
	AnomalyNegativeMargin       AnomalyCategory = "NEGATIVE_MARGIN"
	AnomalyTransferFailure      AnomalyCategory = "TRANSFER_FAILURE"
	AnomalyPaymentFailure       AnomalyCategory = "PAYMENT_FAILURE"
	AnomalyPaymentStateConflict AnomalyCategory = "PAYMENT_STATE_CONFLICT"
	AnomalySettlementBlocked    AnomalyCategory = "SETTLEMENT_BLOCKED"
	AnomalyWebhookRejected      AnomalyCategory = "WEBHOOK_REJECTED"
)

// Severity of an anomaly.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Anomaly is an append-only audit entry consumed by operators.
type Anomaly struct {
	ID        string
	OrderID   string
	Category  AnomalyCategory
	Severity  Severity
	Detail    string
	CreatedAt time.Time
}

// AnomalyFilter selects anomalies for the operator feed.
type AnomalyFilter struct {
	Severity Severity
	OrderID  string
	Limit    int
}
