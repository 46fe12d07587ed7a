package postgres

import (
	"context"
	"database/sql"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

// WebhookEventRepository is a PostgreSQL implementation of repository.WebhookEventRepository.
type WebhookEventRepository struct {
	q Querier
}

var _ repository.WebhookEventRepository = (*WebhookEventRepository)(nil)

// NewWebhookEventRepository creates a new PostgreSQL webhook event repository.
func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{q: db}
}

// Claim inserts the event id. Returns false if it was already recorded.
func (r *WebhookEventRepository) Claim(ctx context.Context, e *domain.ProcessedEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (id, type, outcome, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := conn(ctx, r.q).ExecContext(ctx, query, e.ID, e.Type, e.Outcome, e.ReceivedAt)
	if err != nil {
		return false, err
	}
	return affected(result)
}
