package applications

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var appCols = []string{"id", "first_name", "last_name", "email", "cv_key", "cover_letter_key", "offer_id", "status", "created_at", "updated_at"}

func appRows(id, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(appCols).AddRow(id, "Awa", "Diallo", "awa@example.com", "cv/1.pdf", "letters/1.pdf", "o-1", status, now, now)
}

const (
	insertQ    = `(?s)^INSERT\s+INTO\s+internship_applications\s*\(first_name,.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*RETURNING\s+id,`
	setStatusQ = `(?s)^UPDATE\s+internship_applications\s+SET\s+status\s*=\s*\$1,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$2\s+AND\s+status\s*=\s*\$3\s+RETURNING\s+id,`
)

func TestCreate_InsertsPending(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs("Awa", "Diallo", "awa@example.com", "cv/1.pdf", "letters/1.pdf", "o-1", "pending").
		WillReturnRows(appRows("app-1", "pending"))

	got, err := repo.Create(context.Background(), &models.InternshipApplication{
		FirstName: "Awa", LastName: "Diallo", Email: "awa@example.com",
		CVKey: "cv/1.pdf", CoverLetterKey: "letters/1.pdf", OfferID: "o-1",
		Status: models.StatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1", got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnknownOffer(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := repo.Create(context.Background(), &models.InternshipApplication{OfferID: "nope"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^SELECT\s+id,.*FROM\s+internship_applications\s+WHERE\s+id\s*=\s*\$1$`

	mock.ExpectQuery(q).WithArgs("app-1").WillReturnRows(appRows("app-1", "accepted"))
	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("app-2").WillReturnError(errors.New("timeout"))

	got, err := repo.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Get(context.Background(), "app-2")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestList_FilterByOffer(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+internship_applications\s+WHERE\s+offer_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs("o-1").
		WillReturnRows(appRows("app-1", "pending"))

	got, err := repo.List(context.Background(), "o-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestList_All(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+internship_applications\s+ORDER\s+BY\s+created_at\s+DESC$`).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(appCols))

	got, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetStatusIf(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(setStatusQ).
		WithArgs("accepted", "app-1", "pending").
		WillReturnRows(appRows("app-1", "accepted"))

	got, err := repo.SetStatusIf(context.Background(), "app-1", models.StatusPending, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
}

func TestSetStatusIf_NoMatch(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(setStatusQ).
		WithArgs("rejected", "app-1", "pending").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.SetStatusIf(context.Background(), "app-1", models.StatusPending, models.StatusRejected)
	assert.ErrorIs(t, err, ErrStatusMismatch)
}

func TestSetStatusIf_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(setStatusQ).WillReturnError(errors.New("db down"))

	_, err := repo.SetStatusIf(context.Background(), "app-1", models.StatusPending, models.StatusRejected)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrStatusMismatch)
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+internship_applications\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "ghost"), common.ErrorNotFound)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1$`).WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectExec(`^DELETE\s+FROM\s+internship_applications`).WithArgs("abc").WillReturnError(badUUID)
	mock.ExpectQuery(setStatusQ).WithArgs("accepted", "abc", "pending").WillReturnError(badUUID)
	mock.ExpectQuery(insertQ).WillReturnError(badUUID)

	_, err := repo.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, common.ErrStoreUnavailable)

	err = repo.Delete(context.Background(), "abc")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.SetStatusIf(context.Background(), "abc", models.StatusPending, models.StatusAccepted)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, ErrStatusMismatch)

	_, err = repo.Create(context.Background(), &models.InternshipApplication{OfferID: "1"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
