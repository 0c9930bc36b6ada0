// Package auth identifies callers and decides whether they may use the admin
// console. Storefront users authenticate with bearer tokens issued by the
// identity provider; automation uses API keys.
package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Via records how a principal authenticated.
type Via string

const (
	ViaToken  Via = "token"
	ViaAPIKey Via = "api_key"
)

var (
	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated caller lacks admin rights.
	ErrForbidden = errors.New("forbidden")
)

// Principal is an authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   string
	Admin  bool
	Via    Via
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal attached to ctx, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// AdminPolicy grants admin rights by role or by email. Both lists are
// compared case-insensitively.
type AdminPolicy struct {
	Roles  []string
	Emails []string
}

// Allows reports whether p is an admin under the policy.
func (a AdminPolicy) Allows(p Principal) bool {
	if p.Role != "" && slices.ContainsFunc(a.Roles, func(r string) bool { return strings.EqualFold(r, p.Role) }) {
		return true
	}
	if p.Email != "" && slices.ContainsFunc(a.Emails, func(e string) bool { return strings.EqualFold(strings.TrimSpace(e), p.Email) }) {
		return true
	}
	return false
}
