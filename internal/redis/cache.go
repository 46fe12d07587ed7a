package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"coachpay/internal/domain"
)

// CacheStore caches provider payout accounts in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client, ttl: PayoutAccountCacheTTL}
}

// PayoutAccountCacheTTL bounds how long a stale payouts-enabled flag can survive
// a missed invalidation. Checkout re-reads the flag on every order.
const PayoutAccountCacheTTL = 5 * time.Minute

const payoutAccountPrefix = "cache:payout_account:"

// cachedAccount is the JSON form stored under payoutAccountPrefix.
type cachedAccount struct {
	ProviderID     string    `json:"provider_id"`
	AccountID      string    `json:"account_id"`
	PayoutsEnabled bool      `json:"payouts_enabled"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GetPayoutAccount retrieves a provider's payout account. A miss returns nil, nil.
func (s *CacheStore) GetPayoutAccount(ctx context.Context, providerID string) (*domain.ProviderAccount, error) {
	data, err := s.client.Get(ctx, payoutAccountPrefix+providerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached cachedAccount
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &domain.ProviderAccount{
		ProviderID:     cached.ProviderID,
		AccountID:      cached.AccountID,
		PayoutsEnabled: cached.PayoutsEnabled,
		UpdatedAt:      cached.UpdatedAt,
	}, nil
}

// SetPayoutAccount stores a provider's payout account.
func (s *CacheStore) SetPayoutAccount(ctx context.Context, account *domain.ProviderAccount) error {
	data, err := json.Marshal(cachedAccount{
		ProviderID:     account.ProviderID,
		AccountID:      account.AccountID,
		PayoutsEnabled: account.PayoutsEnabled,
		UpdatedAt:      account.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, payoutAccountPrefix+account.ProviderID, data, s.ttl).Err()
}

// InvalidatePayoutAccount removes a provider's payout account from cache.
func (s *CacheStore) InvalidatePayoutAccount(ctx context.Context, providerID string) error {
	return s.client.Del(ctx, payoutAccountPrefix+providerID).Err()
}
