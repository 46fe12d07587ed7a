package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coachpay/internal/domain"
	"coachpay/internal/repository"
)

const defaultAnomalyLimit = 100

// AnomalyRepository is a PostgreSQL implementation of repository.AnomalyRepository.
type AnomalyRepository struct {
	q Querier
}

var _ repository.AnomalyRepository = (*AnomalyRepository)(nil)

// NewAnomalyRepository creates a new PostgreSQL anomaly repository.
func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{q: db}
}

// Create appends an anomaly.
func (r *AnomalyRepository) Create(ctx context.Context, a *domain.Anomaly) error {
	query := `
		INSERT INTO anomalies (id, order_id, category, severity, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.q).ExecContext(ctx, query,
		a.ID, nullString(a.OrderID), a.Category, a.Severity, a.Detail, a.CreatedAt,
	)
	return err
}

// List returns anomalies matching the filter, newest first.
func (r *AnomalyRepository) List(ctx context.Context, filter domain.AnomalyFilter) ([]*domain.Anomaly, error) {
	var (
		where []string
		args  []any
	)
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if filter.OrderID != "" {
		args = append(args, filter.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAnomalyLimit
	}

	query := `SELECT id, order_id, category, severity, detail, created_at FROM anomalies`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := conn(ctx, r.q).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []*domain.Anomaly
	for rows.Next() {
		var (
			a       domain.Anomaly
			orderID sql.NullString
		)
		if err := rows.Scan(&a.ID, &orderID, &a.Category, &a.Severity, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.OrderID = orderID.String
		anomalies = append(anomalies, &a)
	}
	return anomalies, rows.Err()
}
