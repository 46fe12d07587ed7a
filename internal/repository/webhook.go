package repository

import (
	"context"

	"coachpay/internal/domain"
)

// WebhookEventRepository records processed processor events.
type WebhookEventRepository interface {
	// Claim inserts the event id. Returns false if it was already recorded.
	Claim(ctx context.Context, event *domain.ProcessedEvent) (bool, error)
}
