// Package accounts declares the repository contract for site accounts.
package accounts

import (
	"context"

	"github.com/gin-org/sitebackend/internal/server/models"
)

type Repository interface {
	// Create inserts the account and fills ID and CreatedAt. A taken username
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	ExistsSuperuser(ctx context.Context) (bool, error)
}
