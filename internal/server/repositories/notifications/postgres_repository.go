package notifications

import (
	"context"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, f *models.NotificationFailure) error {
	query :=
		`INSERT INTO notification_failures (template, recipient, cause)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, f.Template, f.Recipient, f.Cause).Scan(&f.ID, &f.CreatedAt); err != nil {
		return common.Unavailable("db error", err)
	}
	return nil
}

func (r *PostgresRepository) ListFailures(ctx context.Context, limit int) ([]models.NotificationFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, template, recipient, cause, created_at FROM notification_failures ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var result []models.NotificationFailure
	for rows.Next() {
		var f models.NotificationFailure
		if err := rows.Scan(&f.ID, &f.Template, &f.Recipient, &f.Cause, &f.CreatedAt); err != nil {
			return nil, common.Unavailable("db error", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return result, nil
}
