package offers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/models"
)

const offerColumns = `id, title, description, start_date, duration_weeks, skills, mission, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(s scanner) (*models.InternshipOffer, error) {
	o := &models.InternshipOffer{}
	err := s.Scan(&o.ID, &o.Title, &o.Description, &o.StartDate, &o.DurationWeeks,
		&o.Skills, &o.Mission, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) Create(ctx context.Context, offer *models.InternshipOffer) (*models.InternshipOffer, error) {
	query :=
		`INSERT INTO internship_offers (title, description, start_date, duration_weeks, skills, mission)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + offerColumns

	o, err := scanOffer(r.db.QueryRowContext(ctx, query,
		offer.Title, offer.Description, offer.StartDate, offer.DurationWeeks, offer.Skills, offer.Mission))
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return o, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.InternshipOffer, error) {
	o, err := scanOffer(r.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM internship_offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("db error", err)
	}
	return o, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.InternshipOffer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM internship_offers ORDER BY start_date DESC, created_at DESC`)
	if err != nil {
		return nil, common.Unavailable("db error", err)
	}
	defer rows.Close()

	var result []models.InternshipOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, common.Unavailable("db error", err)
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("db error", err)
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, offer *models.InternshipOffer) (*models.InternshipOffer, error) {
	query :=
		`UPDATE internship_offers
		 SET title = $1, description = $2, start_date = $3, duration_weeks = $4,
		     skills = $5, mission = $6, updated_at = now()
		 WHERE id = $7
		 RETURNING ` + offerColumns

	o, err := scanOffer(r.db.QueryRowContext(ctx, query,
		offer.Title, offer.Description, offer.StartDate, offer.DurationWeeks, offer.Skills, offer.Mission, offer.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidTextRepresentation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("db error", err)
	}
	return o, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM internship_offers WHERE id = $1`, id)
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
