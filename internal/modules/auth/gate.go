// Package auth gates operations behind the caller's resolved role.
// Identity comes from an injected resolver; this package never stores
// credentials and never logs tokens.
package auth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphaview/alphaview/internal/domain"
)

// IdentityResolver maps an opaque credential to a principal. Implementations
// wrap whatever identity provider the deployment uses. Returning a nil
// principal with a nil error means the credential did not resolve.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}

// capabilities maps each role to the operations it may perform. A role
// missing from this table has no capabilities at all; it is never downgraded
// to a weaker role.
var capabilities = map[domain.Role]map[domain.Operation]bool{
	domain.RoleAdmin: {
		domain.OperationRead:          true,
		domain.OperationTrade:         true,
		domain.OperationRefreshPrices: true,
	},
	domain.RoleViewer: {
		domain.OperationRead: true,
	},
}

// Gate authorizes operations against the capability table
type Gate struct {
	resolver IdentityResolver
	log      zerolog.Logger
}

// NewGate creates a new access gate
func NewGate(resolver IdentityResolver, log zerolog.Logger) *Gate {
	return &Gate{
		resolver: resolver,
		log:      log.With().Str("component", "access_gate").Logger(),
	}
}

// Authorize resolves the credential and checks the operation against the
// caller's role. It returns the principal so callers can attribute the
// action. The token itself is never logged.
func (g *Gate) Authorize(ctx context.Context, token string, op domain.Operation) (*domain.Principal, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	principal, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: identity resolution failed", domain.ErrUnauthenticated)
	}
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}

	if !g.Allows(principal.Role, op) {
		g.log.Warn().
			Str("actor", principal.ID).
			Str("role", string(principal.Role)).
			Str("operation", string(op)).
			Msg("Operation denied")
		return nil, fmt.Errorf("%w: role %s cannot %s", domain.ErrPermissionDenied, principal.Role, op)
	}

	return principal, nil
}

// Allows reports whether a role covers an operation. Unknown roles cover
// nothing.
func (g *Gate) Allows(role domain.Role, op domain.Operation) bool {
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	return ops[op]
}

// Check authorizes an already-resolved principal for an operation. Used on
// paths where the caller was authenticated earlier in the same request.
func (g *Gate) Check(principal *domain.Principal, op domain.Operation) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	if !g.Allows(principal.Role, op) {
		g.log.Warn().
			Str("actor", principal.ID).
			Str("role", string(principal.Role)).
			Str("operation", string(op)).
			Msg("Operation denied")
		return fmt.Errorf("%w: role %s cannot %s", domain.ErrPermissionDenied, principal.Role, op)
	}
	return nil
}
