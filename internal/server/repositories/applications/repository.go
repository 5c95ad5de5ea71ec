// Package applications declares the repository contract for internship
// applications.
package applications

import (
	"context"
	"errors"

	"github.com/gin-org/sitebackend/internal/server/models"
)

// ErrStatusMismatch is returned by SetStatusIf when no row had the expected
// current status (or the row does not exist).
var ErrStatusMismatch = errors.New("application status mismatch")

type Repository interface {
	// Create inserts the application with status pending. An unknown offer
	// yields common.ErrorNotFound.
	Create(ctx context.Context, app *models.InternshipApplication) (*models.InternshipApplication, error)
	Get(ctx context.Context, id string) (*models.InternshipApplication, error)
	// List returns applications newest first; an empty offerID lists all.
	List(ctx context.Context, offerID string) ([]models.InternshipApplication, error)
	Delete(ctx context.Context, id string) error
	// SetStatusIf moves the application from one status to another in a
	// single conditional write.
	SetStatusIf(ctx context.Context, id string, from, to models.ApplicationStatus) (*models.InternshipApplication, error)
}
