package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DenyReason is the fixed human-readable reason of every denial.
	DenyReason = "must be an administrator to perform this action"
	// DenialCode is the machine-checkable code returned to HTTP clients.
	DenialCode = "permission_denied"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }
func deny() Decision  { return Decision{Reason: DenyReason} }

// MembershipChecker answers whether an account belongs to the administrator
// set. Absence is (false, nil); only a store fault is an error.
type MembershipChecker interface {
	IsAdministrator(ctx context.Context, accountID string) (bool, error)
}

// Engine evaluates policies. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	members   MembershipChecker
	decisions *prometheus.CounterVec
}

// NewEngine builds an engine. decisions may be nil.
func NewEngine(members MembershipChecker, decisions *prometheus.CounterVec) *Engine {
	return &Engine{members: members, decisions: decisions}
}

// Authorize evaluates p for (id, action). A membership lookup fault is
// returned as an error wrapping common.ErrStoreUnavailable and never as a deny.
func (e *Engine) Authorize(ctx context.Context, id auth.Identity, action Action, p Policy) (Decision, error) {
	if p.openTo(action) {
		e.observe(p, action, "allow")
		return allow(), nil
	}

	if !id.IsAuthenticated() {
		e.observe(p, action, "deny")
		return deny(), nil
	}

	isAdmin, err := e.members.IsAdministrator(ctx, id.AccountID)
	if err != nil {
		e.observe(p, action, "error")
		if errors.Is(err, common.ErrStoreUnavailable) {
			return Decision{}, fmt.Errorf("administrator lookup: %w", err)
		}
		return Decision{}, common.Unavailable("administrator lookup", err)
	}
	if !isAdmin {
		e.observe(p, action, "deny")
		return deny(), nil
	}

	e.observe(p, action, "allow")
	return allow(), nil
}

// AuthorizeResource looks up the policy of kind and evaluates it.
func (e *Engine) AuthorizeResource(ctx context.Context, id auth.Identity, action Action, kind ResourceKind) (Decision, error) {
	return e.Authorize(ctx, id, action, ForResource(kind))
}

// Require is Authorize for callers that only need an error: a denial becomes
// a *common.AuthorizationError.
func (e *Engine) Require(ctx context.Context, id auth.Identity, action Action, p Policy) error {
	d, err := e.Authorize(ctx, id, action, p)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &common.AuthorizationError{Reason: d.Reason}
	}
	return nil
}

// IsAdministrator reports whether id is an authenticated administrator.
func (e *Engine) IsAdministrator(ctx context.Context, id auth.Identity) (bool, error) {
	d, err := e.Authorize(ctx, id, ActionMutate, AdminOnly)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

func (e *Engine) observe(p Policy, a Action, outcome string) {
	if e.decisions != nil {
		e.decisions.WithLabelValues(p.String(), a.String(), outcome).Inc()
	}
}

// MembershipFunc adapts a function to MembershipChecker.
type MembershipFunc func(ctx context.Context, accountID string) (bool, error)

func (f MembershipFunc) IsAdministrator(ctx context.Context, accountID string) (bool, error) {
	return f(ctx, accountID)
}
