package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// ProviderAccountRepository is a PostgreSQL implementation of repository.ProviderAccountRepository.
type ProviderAccountRepository struct {
	q Querier
}

var _ repository.ProviderAccountRepository = (*ProviderAccountRepository)(nil)

// NewProviderAccountRepository creates a new PostgreSQL provider account repository.
func NewProviderAccountRepository(db *sql.DB) *ProviderAccountRepository {
	return &ProviderAccountRepository{q: db}
}

// Upsert stores the account for a provider.
func (r *ProviderAccountRepository) Upsert(ctx context.Context, a *domain.ProviderAccount) error {
	query := `
		INSERT INTO provider_accounts (provider_id, account_id, payouts_enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id) DO UPDATE
		SET account_id = EXCLUDED.account_id,
			payouts_enabled = EXCLUDED.payouts_enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err := conn(ctx, r.q).ExecContext(ctx, query, a.ProviderID, a.AccountID, a.PayoutsEnabled, a.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByProviderID retrieves the payout account of a provider.
func (r *ProviderAccountRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.ProviderAccount, error) {
	query := `
		SELECT provider_id, account_id, payouts_enabled, updated_at
		FROM provider_accounts WHERE provider_id = $1
	`

	var a domain.ProviderAccount
	err := conn(ctx, r.q).QueryRowContext(ctx, query, providerID).Scan(
		&a.ProviderID,
		&a.AccountID,
		&a.PayoutsEnabled,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// SetPayoutsEnabled updates the payout capability of a processor account and returns its provider id.
func (r *ProviderAccountRepository) SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool, at time.Time) (string, error) {
	query := `
		UPDATE provider_accounts SET payouts_enabled = $2, updated_at = $3
		WHERE account_id = $1
		RETURNING provider_id
	`

	var providerID string
	err := conn(ctx, r.q).QueryRowContext(ctx, query, accountID, enabled, at).Scan(&providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return providerID, nil
}
