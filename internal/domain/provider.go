package domain

import "time"

// ProviderAccount links a coach to the processor's connected payout account.
type ProviderAccount struct {
	ProviderID     string
	AccountID      string
	PayoutsEnabled bool
	UpdatedAt      time.Time
}
