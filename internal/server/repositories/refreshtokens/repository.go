// Package refreshtokens declares the server-side repository contract for
// refresh credentials. A refresh JWT is accepted only while its jti row exists.
package refreshtokens

import (
	"context"
	"time"

	"github.com/gin-org/sitebackend/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh tokens.
type Repository interface {
	// Create stores the jti issued to accountID, valid until expires.
	Create(ctx context.Context, jti string, accountID string, expires time.Time) error

	// Consume deletes the jti row and returns it. A missing row yields
	// common.ErrorNotFound, which means the token was never issued or has
	// already been used.
	Consume(ctx context.Context, jti string) (*models.RefreshToken, error)

	// DeleteForAccount revokes every refresh token of the account.
	DeleteForAccount(ctx context.Context, accountID string) error
}
