// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/models"
)

// PostgresRepository implements the refresh token store over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, jti string, accountID string, expires time.Time) error {
	query := `
		INSERT INTO refresh_tokens (jti, account_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, jti, accountID, expires); err != nil {
		return common.Unavailable("db error", err)
	}
	return nil
}

// Consume removes the row in a single statement, so two concurrent refreshes
// with the same token cannot both succeed.
func (r *PostgresRepository) Consume(ctx context.Context, jti string) (*models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE jti = $1
		RETURNING account_id, expires_at, created_at
	`
	t := &models.RefreshToken{JTI: jti}
	if err := r.db.QueryRowContext(ctx, query, jti).Scan(&t.AccountID, &t.Expires, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("db error", err)
	}
	return t, nil
}

func (r *PostgresRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE account_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		return common.Unavailable("db error", err)
	}
	return nil
}
