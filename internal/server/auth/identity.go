// Package auth resolves who is making a request: JWT access/refresh tokens,
// server-side sessions, and the resulting Identity.
package auth

import "context"

// Identity is the resolved caller of one request. The zero value is anonymous.
type Identity struct {
	AccountID string
}

// Anonymous returns the identity of an unauthenticated caller.
func Anonymous() Identity { return Identity{} }

// Authenticated returns the identity of the given account.
func Authenticated(accountID string) Identity { return Identity{AccountID: accountID} }

func (i Identity) IsAuthenticated() bool { return i.AccountID != "" }

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
