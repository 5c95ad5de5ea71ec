// Package notifications persists notifications that could not be delivered,
// so an operator can replay or inspect them.
package notifications

import (
	"context"

	"github.com/gin-org/sitebackend/internal/server/models"
)

type Repository interface {
	RecordFailure(ctx context.Context, f *models.NotificationFailure) error
	ListFailures(ctx context.Context, limit int) ([]models.NotificationFailure, error)
}
