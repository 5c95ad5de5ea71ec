// Package offers declares the repository contract for internship offers.
package offers

import (
	"context"

	"github.com/gin-org/sitebackend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, offer *models.InternshipOffer) (*models.InternshipOffer, error)
	Get(ctx context.Context, id string) (*models.InternshipOffer, error)
	List(ctx context.Context) ([]models.InternshipOffer, error)
	// Update overwrites the editable fields; a missing offer yields common.ErrorNotFound.
	Update(ctx context.Context, offer *models.InternshipOffer) (*models.InternshipOffer, error)
	Delete(ctx context.Context, id string) error
}
