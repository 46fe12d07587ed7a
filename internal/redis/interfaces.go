package redis

import (
	"context"
	"time"

	"coachpay/internal/service"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, name, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ service.AccountCache = (*CacheStore)(nil)
	_ LockStoreInterface   = (*LockStore)(nil)
)
