// Package contacts declares the repository contract for contact form messages.
package contacts

import (
	"context"

	"github.com/gin-org/sitebackend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.ContactMessage) (*models.ContactMessage, error)
	List(ctx context.Context) ([]models.ContactMessage, error)
}
