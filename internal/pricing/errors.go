package pricing

import "errors"

var (
	// ErrInvalidAmount is returned when the provider net amount is not a positive number of minor units.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidSessionCount is returned when a pack has no sessions.
	ErrInvalidSessionCount = errors.New("invalid session count")

	// ErrInvalidFeeConfig is returned when the fee configuration cannot be applied.
	ErrInvalidFeeConfig = errors.New("invalid fee config")
)
