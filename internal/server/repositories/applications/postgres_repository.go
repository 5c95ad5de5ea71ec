package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/models"
)

const applicationColumns = `id, first_name, last_name, email, cv_key, cover_letter_key, offer_id, status, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (*models.InternshipApplication, error) {
	a := &models.InternshipApplication{}
	var status string
	err := s.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.CVKey, &a.CoverLetterKey,
		&a.OfferID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.ApplicationStatus(status)
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, app *models.InternshipApplication) (*models.InternshipApplication, error) {
	query :=
		`INSERT INTO internship_applications (first_name, last_name, email, cv_key, cover_letter_key, offer_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + applicationColumns

	a, err := scanApplication(r.db.QueryRowContext(ctx, query,
		app.FirstName, app.LastName, app.Email, app.CVKey, app.CoverLetterKey, app.OfferID, string(models.StatusPending)))
	if err != nil {
		if dbx.IsForeignKeyViolation(err) || dbx.IsInvalidTextRepresentation(err) {
			return nil, fmt.Errorf("offer %s: %w", app.OfferID, common.ErrorNotFound)
		}
		return nil, common.Unavailable("db error", err)
	}
	return a, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.InternshipApplication, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM internship_applications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("db error", err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, offerID string) ([]models.InternshipApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM internship_applications`
	var args []any
	if offerID != "" {
		query += ` WHERE offer_id = $1`
		args = append(args, offerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var result []models.InternshipApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, common.Unavailable("db error", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM internship_applications WHERE id = $1`, id)
	if err != nil {
		if dbx.IsInvalidTextRepresentation(err) {
			return common.ErrorNotFound
		}
		return common.Unavailable("db error", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Unavailable("db error", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetStatusIf(ctx context.Context, id string, from, to models.ApplicationStatus) (*models.InternshipApplication, error) {
	query :=
		`UPDATE internship_applications
		 SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3
		 RETURNING ` + applicationColumns

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, string(to), id, string(from)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusMismatch
		}
		if dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("db error", err)
	}
	return a, nil
}
