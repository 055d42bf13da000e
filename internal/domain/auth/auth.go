// Package auth resolves callers to principals.
//
// A Principal is always passed explicitly to the operations that need it;
// nothing in the service reads the current user from package state.
package auth

import (
	"context"
	"fmt"
	"strings"
)

// Roles.
const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"
)

// Principal is an authenticated caller.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// IsAdmin reports whether p may run back-office operations.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// RequireAdmin returns ErrForbidden for non-admin principals.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("%w: %s requires the %s role", ErrForbidden, p.UID, RoleAdmin)
	}
	return nil
}

// Provider maps bearer tokens to principals.
type Provider struct {
	tokens map[string]Principal
}

// NewProvider builds a provider from a token table. Empty roles default to
// participant; unknown roles are rejected.
func NewProvider(tokens map[string]Principal) (*Provider, error) {
	p := &Provider{tokens: make(map[string]Principal, len(tokens))}
	for token, pr := range tokens {
		pr.Role = strings.ToLower(strings.TrimSpace(pr.Role))
		switch pr.Role {
		case "":
			pr.Role = RoleParticipant
		case RoleAdmin, RoleParticipant:
		default:
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidRole, pr.Role, pr.UID)
		}
		p.tokens[token] = pr
	}
	return p, nil
}

// Authenticate resolves a bearer token.
func (p *Provider) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	pr, ok := p.tokens[token]
	if !ok {
		return Principal{}, fmt.Errorf("%w: unknown token", ErrUnauthenticated)
	}
	return pr, nil
}

type principalKey struct{}

// WithPrincipal attaches p to a request context. Only the HTTP layer uses
// this to hand the principal from middleware to handlers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal attached by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
