package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/config"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
	"github.com/gin-org/sitebackend/internal/server/sessions"
	"golang.org/x/crypto/bcrypt"
)

// TokenPair bundles a short-lived access token and, when issued, a
// long-lived refresh token.
type TokenPair struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// LoginResult is what a successful administrator login produces.
type LoginResult struct {
	Account *models.Account
	Session *sessions.Session
	Tokens  *TokenPair
}

// Profile describes the authenticated administrator.
type Profile struct {
	Account         *models.Account
	IsAdministrator bool
}

// NewAccount is the input of CreateAccount.
type NewAccount struct {
	Username    string
	Email       string
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

// SessionStore is the part of the session store the account service writes to.
type SessionStore interface {
	Create(ctx context.Context, accountID string, ttl time.Duration) (*sessions.Session, error)
	Delete(ctx context.Context, id string) error
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AccountService handles provisioning, administrator membership, login,
// logout and token refresh.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	sessions    SessionStore
	policy      *policy.Engine
	sessionTTL  time.Duration
	rotate      bool
	hashCost    int
	now         func() time.Time
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenIssuer,
	store SessionStore, engine *policy.Engine, cfg *config.Config) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		sessions:    store,
		policy:      engine,
		sessionTTL:  cfg.SessionTTL,
		rotate:      cfg.RotateRefreshTokens,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// CreateAccount stores a new account with a bcrypt password hash. A
// superuser is added to the administrator set in the same transaction.
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccount) (*models.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	v := &common.ValidationError{}
	checkLength(v, "username", in.Username, 1, 150)
	if in.Email != "" && !validEmail(in.Email) {
		v.Add("email", "enter a valid email address")
	}
	if in.Password == "" {
		v.Add("password", "this field is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      in.IsStaff || in.IsSuperuser,
		IsSuperuser:  in.IsSuperuser,
	}

	var created *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err = s.repomanager.Accounts(tx).Create(ctx, account)
		if err != nil {
			return fmt.Errorf("error creating account: %w", err)
		}
		if created.IsSuperuser {
			if err := s.repomanager.Administrators(tx).Add(ctx, created.ID); err != nil {
				return fmt.Errorf("error provisioning administrator: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// EnsureSuperuser creates a superuser unless one already exists or the
// username is taken. It reports whether an account was created.
func (s *AccountService) EnsureSuperuser(ctx context.Context, username, email, password string) (bool, error) {
	repo := s.repomanager.Accounts(s.db)

	exists, err := repo.ExistsSuperuser(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := repo.GetByUsername(ctx, strings.TrimSpace(username)); err == nil {
		return false, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	if _, err := s.CreateAccount(ctx, NewAccount{
		Username:    username,
		Email:       email,
		Password:    password,
		IsSuperuser: true,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// ProvisionAdministrator adds the named account to the administrator set
// without an acting identity. It backs the admin CLI.
func (s *AccountService) ProvisionAdministrator(ctx context.Context, username string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Administrators(s.db).Add(ctx, account.ID); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GrantAdministrator(ctx context.Context, actor auth.Identity, accountID string) error {
	if err := s.policy.Require(ctx, actor, policy.ActionMutate, policy.ForResource(policy.ResourceAdministrators)); err != nil {
		return err
	}
	if err := lookupID(accountID); err != nil {
		return err
	}
	return s.repomanager.Administrators(s.db).Add(ctx, accountID)
}

// RevokeAdministrator removes an account from the administrator set. The
// last member cannot be removed (common.ErrLastAdministrator); the member
// rows are locked so two concurrent revocations cannot empty the set.
func (s *AccountService) RevokeAdministrator(ctx context.Context, actor auth.Identity, accountID string) error {
	if err := s.policy.Require(ctx, actor, policy.ActionMutate, policy.ForResource(policy.ResourceAdministrators)); err != nil {
		return err
	}
	if err := lookupID(accountID); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Administrators(tx)
		members, err := repo.LockMembers(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(members, accountID) {
			return nil
		}
		if len(members) == 1 {
			return common.ErrLastAdministrator
		}
		return repo.Remove(ctx, accountID)
	})
}

func (s *AccountService) ListAdministrators(ctx context.Context, actor auth.Identity) ([]models.Account, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionRead, policy.ForResource(policy.ResourceAdministrators)); err != nil {
		return nil, err
	}
	return s.repomanager.Administrators(s.db).List(ctx)
}

// Login checks the credentials of an administrator and opens a session plus
// a token pair. Unknown, inactive and non-administrator accounts all yield
// common.ErrorUnauthorized.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	account, err := s.repomanager.Accounts(s.db).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Keep the timing of unknown users close to that of known ones.
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil || !account.IsActive {
		return nil, common.ErrorUnauthorized
	}

	isAdmin, err := s.repomanager.Administrators(s.db).IsMember(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, common.ErrorUnauthorized
	}

	sess, err := s.sessions.Create(ctx, account.ID, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	pair, err := s.issuePair(ctx, account.ID, s.db)
	if err != nil {
		if derr := s.sessions.Delete(context.WithoutCancel(ctx), sess.ID); derr != nil {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}

	return &LoginResult{Account: account, Session: sess, Tokens: pair}, nil
}

// Logout ends the session, blacklists the presented access token for the
// rest of its lifetime and drops the account's refresh tokens.
func (s *AccountService) Logout(ctx context.Context, id auth.Identity, sessionID, accessToken string) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return err
		}
	}

	if accessToken != "" {
		if claims, err := s.tokens.Verify(accessToken, auth.TokenTypeAccess); err == nil {
			ttl := claims.ExpiresAt.Sub(s.now())
			if err := s.sessions.RevokeToken(ctx, claims.ID, ttl); err != nil {
				return err
			}
		}
	}

	if id.IsAuthenticated() {
		if err := s.repomanager.RefreshTokens(s.db).DeleteForAccount(ctx, id.AccountID); err != nil {
			return err
		}
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token. Each refresh
// token is accepted once: its server-side row is consumed in a transaction.
// With rotation enabled a new refresh token is issued as well.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, err
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Consume(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrRefreshTokenUsed
			}
			return err
		}
		if token.AccountID != claims.Subject {
			return common.ErrInvalidToken
		}
		if !token.Expires.After(s.now()) {
			return common.ErrRefreshTokenExpired
		}

		account, err := s.repomanager.Accounts(tx).GetByID(ctx, token.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}
		if !account.IsActive {
			return common.ErrorUnauthorized
		}

		if s.rotate {
			pair, err = s.issuePair(ctx, account.ID, tx)
			return err
		}
		access, err := s.tokens.IssueAccess(account.ID)
		if err != nil {
			return common.ErrorInternal
		}
		pair = &TokenPair{AccessToken: access.Token, AccessExpiresAt: access.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Profile returns the calling administrator's account.
func (s *AccountService) Profile(ctx context.Context, id auth.Identity) (*Profile, error) {
	if !id.IsAuthenticated() {
		return nil, common.ErrorUnauthorized
	}
	if err := s.policy.Require(ctx, id, policy.ActionRead, policy.AdminOnly); err != nil {
		return nil, err
	}
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	return &Profile{Account: account, IsAdministrator: true}, nil
}

func (s *AccountService) issuePair(ctx context.Context, accountID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(accountID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.tokens.IssueRefresh(accountID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, refresh.JTI, accountID, refresh.ExpiresAt); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:     access.Token,
		AccessExpiresAt: access.ExpiresAt,
		RefreshToken:    refresh.Token,
	}, nil
}

var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})
