package repository

import (
	"context"
	"time"

	"coachpay/internal/domain"
)

// ProviderAccountRepository defines the persistence operations for coach payout accounts.
type ProviderAccountRepository interface {
	// Upsert stores the account for a provider.
	Upsert(ctx context.Context, account *domain.ProviderAccount) error

	// GetByProviderID retrieves the payout account of a provider.
	GetByProviderID(ctx context.Context, providerID string) (*domain.ProviderAccount, error)

	// SetPayoutsEnabled updates the payout capability of a processor account
	// and returns the owning provider id.
	SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool, at time.Time) (string, error)
}
