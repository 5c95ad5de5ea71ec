package administrators

import (
	"context"
	"fmt"

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

func (r *PostgresRepository) Add(ctx context.Context, accountID string) error {
	query :=
		`INSERT INTO administrator_members (account_id)
		 VALUES ($1)
		 ON CONFLICT (account_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, accountID); err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidTextRepresentation(err) {
			return fmt.Errorf("account %s: %w", accountID, common.ErrorNotFound)
		}
		return common.Unavailable("db error", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM administrator_members WHERE account_id = $1`, accountID); err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return nil
		}
		return common.Unavailable("db error", err)
	}
	return nil
}

// LockMembers returns the member IDs and locks their rows until the
// surrounding transaction ends. Rows deleted by a concurrent transaction
// are skipped once it commits.
func (r *PostgresRepository) LockMembers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM administrator_members ORDER BY account_id FOR UPDATE`)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.Unavailable("db error", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return ids, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, accountID string) (bool, error) {
	var member bool
	query := `SELECT EXISTS (SELECT 1 FROM administrator_members WHERE account_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&member); err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return false, nil
		}
		return false, common.Unavailable("db error", err)
	}
	return member, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Account, error) {
	query :=
		`SELECT a.id, a.username, a.email, a.is_active, a.is_staff, a.is_superuser, a.created_at
		 FROM administrator_members m
		 JOIN accounts a ON a.id = m.account_id
		 ORDER BY a.username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var result []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.IsActive, &a.IsStaff, &a.IsSuperuser, &a.CreatedAt); err != nil {
			return nil, common.Unavailable("db error", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}

	return result, nil
}
