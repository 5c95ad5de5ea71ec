// Package administrators stores the administrator set: the accounts allowed
// to perform administrative actions. Membership is a set, not an account flag.
package administrators

import (
	"context"

	"github.com/gin-org/sitebackend/internal/server/models"
)

type Repository interface {
	// Add is idempotent.
	Add(ctx context.Context, accountID string) error
	// Remove deletes the membership; a missing member is not an error.
	Remove(ctx context.Context, accountID string) error
	// IsMember reports membership. Absence is (false, nil); a store fault is
	// an error wrapping common.ErrStoreUnavailable.
	IsMember(ctx context.Context, accountID string) (bool, error)
	List(ctx context.Context) ([]models.Account, error)
	// LockMembers returns member account IDs, locked for the current
	// transaction. Only meaningful on a *sql.Tx.
	LockMembers(ctx context.Context) ([]string, error)
}
