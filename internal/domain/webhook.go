package domain

import "time"

// WebhookEventType is a processor notification type.
type WebhookEventType string

const (
	EventCheckoutCompleted WebhookEventType = "checkout.session.completed"
	EventPaymentSucceeded  WebhookEventType = "payment_intent.succeeded"
	EventPaymentFailed     WebhookEventType = "payment_intent.payment_failed"
	EventChargeRefunded    WebhookEventType = "charge.refunded"
	EventAccountUpdated    WebhookEventType = "account.updated"
)

// WebhookEvent is a verified processor notification reduced to the fields the engine needs.
type WebhookEvent struct {
	ID   string
	Type WebhookEventType

	OrderID          string // from client reference / metadata
	CaptureSessionID string
	PaymentID        string
	Paid             bool // funds captured; false for asynchronous payment methods
	FailureReason    string

	AccountID      string
	PayoutsEnabled bool
}

// ProcessedEvent is the ledger row that makes webhook handling idempotent.
type ProcessedEvent struct {
	ID         string
	Type       WebhookEventType
	Outcome    string
	ReceivedAt time.Time
}
