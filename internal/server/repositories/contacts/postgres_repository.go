package contacts

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

func (r *PostgresRepository) Create(ctx context.Context, msg *models.ContactMessage) (*models.ContactMessage, error) {
	query :=
		`INSERT INTO contact_messages (name, email, subject, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, msg.Name, msg.Email, msg.Subject, msg.Message).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return msg, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, subject, message, created_at FROM contact_messages ORDER BY created_at DESC`)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var result []models.ContactMessage
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, common.Unavailable("db error", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return result, nil
}
