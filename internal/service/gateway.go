package service

import (
	"context"
	"fmt"

	"coachpay/internal/domain"
)

// TransferGroup ties the capture and the transfer of an order together at the processor.
func TransferGroup(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// TransferIdempotencyKey is the processor idempotency key of one payout attempt. The processor
// replays the stored response of a key, failures included, so every attempt gets its own key;
// the transfer group lookup before a retry is what keeps an order to a single payout.
func TransferIdempotencyKey(orderID string, attempt int) string {
	return fmt.Sprintf("transfer-%s-%d", orderID, attempt)
}

// CaptureRequest describes the hosted payment page opened for an order.
type CaptureRequest struct {
	OrderID       string
	Description   string
	AmountCents   int64
	Currency      string
	TransferGroup string

	// The charge stays on the platform account; the provider is paid by a separate transfer
	// after the sessions end. These are recorded on the payment for reconciliation only.
	DestinationAccountID string
	ApplicationFeeCents  int64
}

// CaptureSession is the processor's view of a hosted payment page.
type CaptureSession struct {
	ID        string
	URL       string
	OrderID   string
	PaymentID string
	Paid      bool
}

// CaptureGateway collects buyer funds into the platform balance.
type CaptureGateway interface {
	CreateCaptureSession(ctx context.Context, req CaptureRequest) (*CaptureSession, error)
	GetCaptureSession(ctx context.Context, sessionID string) (*CaptureSession, error)
}

// TransferRequest moves held funds to a provider's payout account.
type TransferRequest struct {
	OrderID        string
	Destination    string
	AmountCents    int64
	Currency       string
	TransferGroup  string
	IdempotencyKey string
}

// Transfer is a processor transfer reference.
type Transfer struct {
	ID          string
	AmountCents int64
	Destination string
}

// TransferGateway executes and looks up provider payouts.
type TransferGateway interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)

	// FindTransfer returns the transfer already issued for the group, or nil if there is none.
	FindTransfer(ctx context.Context, transferGroup string) (*Transfer, error)
}

// AccountGateway manages provider payout accounts at the processor.
type AccountGateway interface {
	CreatePayoutAccount(ctx context.Context, providerID string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
}

// WebhookVerifier authenticates and decodes processor notifications.
type WebhookVerifier interface {
	ParseWebhookEvent(payload []byte, signatureHeader string) (*domain.WebhookEvent, error)
}
