package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"coachpay/internal/clock"
	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// AccountCache caches provider payout accounts. A miss returns nil, nil.
type AccountCache interface {
	GetPayoutAccount(ctx context.Context, providerID string) (*domain.ProviderAccount, error)
	SetPayoutAccount(ctx context.Context, account *domain.ProviderAccount) error
	InvalidatePayoutAccount(ctx context.Context, providerID string) error
}

// OnboardingResult is returned when a provider starts or resumes payout onboarding.
type OnboardingResult struct {
	AccountID      string `json:"account_id"`
	OnboardingURL  string `json:"onboarding_url"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

// ProviderService manages coach payout accounts.
type ProviderService struct {
	accounts repository.ProviderAccountRepository
	gateway  AccountGateway
	cache    AccountCache
	clock    clock.Clock
	log      logrus.FieldLogger
}

// NewProviderService creates a new ProviderService. cache may be nil.
func NewProviderService(
	accounts repository.ProviderAccountRepository,
	gateway AccountGateway,
	cache AccountCache,
	clk clock.Clock,
	log logrus.FieldLogger,
) *ProviderService {
	return &ProviderService{
		accounts: accounts,
		gateway:  gateway,
		cache:    cache,
		clock:    clk,
		log:      log.WithField("component", "provider"),
	}
}

// StartOnboarding creates the provider's payout account on first use and returns an onboarding link.
func (s *ProviderService) StartOnboarding(ctx context.Context, providerID string) (*OnboardingResult, error) {
	if providerID == "" {
		return nil, ErrInvalidProviderID
	}

	account, err := s.accounts.GetByProviderID(ctx, providerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if account == nil {
		accountID, err := s.gateway.CreatePayoutAccount(ctx, providerID)
		if err != nil {
			return nil, fmt.Errorf("create payout account: %w", err)
		}
		account = &domain.ProviderAccount{
			ProviderID: providerID,
			AccountID:  accountID,
			UpdatedAt:  s.clock.Now(),
		}
		if err := s.accounts.Upsert(ctx, account); err != nil {
			return nil, err
		}
		s.invalidate(ctx, providerID)
		s.log.WithFields(logrus.Fields{"provider_id": providerID, "account_id": accountID}).Info("payout account created")
	}

	url, err := s.gateway.CreateOnboardingLink(ctx, account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("create onboarding link: %w", err)
	}

	return &OnboardingResult{
		AccountID:      account.AccountID,
		OnboardingURL:  url,
		PayoutsEnabled: account.PayoutsEnabled,
	}, nil
}

// PayoutAccount returns the provider's payout account, preferring the cache.
func (s *ProviderService) PayoutAccount(ctx context.Context, providerID string) (*domain.ProviderAccount, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPayoutAccount(ctx, providerID)
		if err != nil {
			s.log.WithError(err).Warn("payout account cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	account, err := s.accounts.GetByProviderID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPayoutAccountMissing
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPayoutAccount(ctx, account); err != nil {
			s.log.WithError(err).Warn("payout account cache write failed")
		}
	}
	return account, nil
}

// ApplyAccountUpdate records the processor's view of an account's payout capability.
func (s *ProviderService) ApplyAccountUpdate(ctx context.Context, accountID string, payoutsEnabled bool) error {
	providerID, err := s.accounts.SetPayoutsEnabled(ctx, accountID, payoutsEnabled, s.clock.Now())
	if err != nil {
		return err
	}
	s.invalidate(ctx, providerID)
	return nil
}

func (s *ProviderService) invalidate(ctx context.Context, providerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePayoutAccount(ctx, providerID); err != nil {
		s.log.WithError(err).WithField("provider_id", providerID).Warn("payout account cache invalidation failed")
	}
}
