package auth

import (
	"context"
	"errors"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/sessions"
)

// SessionReader is the part of the session store the authenticator needs.
type SessionReader interface {
	Get(ctx context.Context, id string) (*sessions.Session, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AccountReader loads accounts by ID.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// Authenticator turns request credentials into an Identity.
type Authenticator struct {
	tokens   *TokenIssuer
	sessions SessionReader
	accounts AccountReader
}

func NewAuthenticator(tokens *TokenIssuer, sessions SessionReader, accounts AccountReader) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, accounts: accounts}
}

// Resolve tries the bearer access token first, then the session ID, and
// falls back to Anonymous. Invalid, expired or revoked credentials are not
// errors; they just do not authenticate. A failing session or account store
// is returned as an error wrapping common.ErrStoreUnavailable.
func (a *Authenticator) Resolve(ctx context.Context, bearerToken, sessionID string) (Identity, error) {
	if bearerToken != "" {
		id, err := a.fromBearer(ctx, bearerToken)
		if err != nil || id.IsAuthenticated() {
			return id, err
		}
	}

	if sessionID != "" {
		id, err := a.fromSession(ctx, sessionID)
		if err != nil || id.IsAuthenticated() {
			return id, err
		}
	}

	return Anonymous(), nil
}

func (a *Authenticator) fromBearer(ctx context.Context, token string) (Identity, error) {
	claims, err := a.tokens.Verify(token, TokenTypeAccess)
	if err != nil {
		return Anonymous(), nil
	}

	revoked, err := a.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Anonymous(), err
	}
	if revoked {
		return Anonymous(), nil
	}

	return a.activeAccount(ctx, claims.Subject)
}

func (a *Authenticator) fromSession(ctx context.Context, sessionID string) (Identity, error) {
	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Anonymous(), nil
		}
		return Anonymous(), err
	}

	return a.activeAccount(ctx, sess.AccountID)
}

func (a *Authenticator) activeAccount(ctx context.Context, accountID string) (Identity, error) {
	acc, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Anonymous(), nil
		}
		return Anonymous(), err
	}
	if !acc.IsActive {
		return Anonymous(), nil
	}
	return Authenticated(acc.ID), nil
}
