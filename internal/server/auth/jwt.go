package auth

import (
	"errors"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType tells access and refresh tokens apart; each is only accepted
// where its own type is expected.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carries the registered claims (sub = account ID, jti = token ID)
// plus the token type.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// IssuedToken is a signed token together with the identifiers the server
// needs to track it.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 JWTs.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (t *TokenIssuer) IssueAccess(accountID string) (*IssuedToken, error) {
	return t.issue(accountID, TokenTypeAccess, t.accessTTL)
}

func (t *TokenIssuer) IssueRefresh(accountID string) (*IssuedToken, error) {
	return t.issue(accountID, TokenTypeRefresh, t.refreshTTL)
}

func (t *TokenIssuer) issue(accountID string, typ TokenType, ttl time.Duration) (*IssuedToken, error) {
	now := t.now()
	jti := uuid.NewString()
	expires := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType: typ,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expires}, nil
}

// Verify checks signature, algorithm, expiry, issuer and token type.
// An expired token yields common.ErrTokenExpired; anything else wrong yields
// common.ErrInvalidToken.
func (t *TokenIssuer) Verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != want || claims.Subject == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
