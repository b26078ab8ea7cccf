package shared

import (
	"context"

	"github.com/unipulse/unipulse/internal/scope"
)

// Principal is the resolved actor attached to a request. Misconfigured is
// set when role data could not be resolved; such principals are denied
// everywhere rather than treated as having partial access.
type Principal struct {
	UserID int64
	// Assignments are the raw role grants; survey group policies match on
	// these rather than the resolved context.
	Assignments   []scope.RoleAssignment
	Context       scope.PrincipalContext
	Misconfigured bool
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the resolved principal, nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
