package service

import "errors"

var (
	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidBuyerID is returned when buyer ID is empty.
	ErrInvalidBuyerID = errors.New("invalid buyer id")

	// ErrInvalidProviderID is returned when provider ID is empty.
	ErrInvalidProviderID = errors.New("invalid provider id")

	// ErrInvalidSchedule is returned when a session does not end after it starts.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidFeeKind is returned when an order is neither a single session nor a pack.
	ErrInvalidFeeKind = errors.New("invalid fee kind")

	// ErrNotOrderParty is returned when the actor is neither the buyer nor the provider of the order.
	ErrNotOrderParty = errors.New("actor is not a party to this order")

	// ErrNotPackOrder is returned when booking a session on a single-session order.
	ErrNotPackOrder = errors.New("order is not a pack")

	// ErrPayoutAccountMissing is returned when a provider has no payout account yet.
	ErrPayoutAccountMissing = errors.New("provider has no payout account")

	// ErrPayoutsDisabled is returned when a provider's payout account cannot receive transfers.
	ErrPayoutsDisabled = errors.New("provider payouts are not enabled")

	// ErrOrderNotEligible is returned when an order is not in a state that allows the operation.
	ErrOrderNotEligible = errors.New("order not eligible")

	// ErrOrderNotRetryable is returned when a new payment attempt is requested for an order that did not fail.
	ErrOrderNotRetryable = errors.New("order payment cannot be retried")

	// ErrPaymentNotCompleted is returned when the buyer payment has not been captured.
	ErrPaymentNotCompleted = errors.New("payment could not be completed")

	// ErrSettlementBlocked is returned when an order exhausted its transfer attempts and needs an operator.
	ErrSettlementBlocked = errors.New("settlement blocked")

	// ErrTransferFailed wraps the processor error of a failed transfer attempt.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrCaptureUnavailable wraps a failure to open the buyer's capture session.
	ErrCaptureUnavailable = errors.New("capture session unavailable")

	// ErrProcessorUnavailable is returned when the processor outcome is unknown (timeout, 5xx, network).
	ErrProcessorUnavailable = errors.New("payment processor unavailable")

	// ErrWebhookVerification is returned when a webhook signature or payload is invalid.
	ErrWebhookVerification = errors.New("webhook verification failed")

	// ErrDuplicateEvent marks a webhook event that was already processed.
	ErrDuplicateEvent = errors.New("duplicate webhook event")
)
