package repository

import (
	"context"

	"coachpay/internal/domain"
)

// AnomalyRepository stores the operator audit feed.
type AnomalyRepository interface {
	// Create appends an anomaly.
	Create(ctx context.Context, anomaly *domain.Anomaly) error

	// List returns anomalies matching the filter, newest first.
	List(ctx context.Context, filter domain.AnomalyFilter) ([]*domain.Anomaly, error)
}
