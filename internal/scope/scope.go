// Package scope implements the tenant isolation mediator. Every repository
// read accepts a Scope; the portal layer derives it from the acting
// principal so a non-admin can only see its own tenant's records.
package scope

import (
	"context"

	"clearbill.io/internal/directory"
)

// Scope is a tenant filter: either all tenants (admin) or exactly one.
type Scope struct {
	All      bool
	TenantID int64
}

// Everything spans all tenants.
func Everything() Scope { return Scope{All: true} }

// Tenant restricts to a single tenant id.
func Tenant(id int64) Scope { return Scope{TenantID: id} }

// For maps a principal to its scope: admins span all tenants, a client's
// principal id doubles as its tenant id.
func For(p directory.Principal) Scope {
	if p.IsAdmin() {
		return Everything()
	}
	return Tenant(p.ID)
}

// Allows reports whether a record owned by tenantID is visible.
func (s Scope) Allows(tenantID int64) bool {
	return s.All || s.TenantID == tenantID
}

// Where appends the scope's tenant predicate to a WHERE clause fragment
// list. Admin scope contributes nothing.
func (s Scope) Where(conds []string, args []any, col string) ([]string, []any) {
	if s.All {
		return conds, args
	}
	return append(conds, col+" = ?"), append(args, s.TenantID)
}

// TenantFor resolves the owning tenant of a write: admins may declare any
// tenant, non-admins are silently pinned to their own id regardless of the
// declared value.
func (s Scope) TenantFor(declared int64) int64 {
	if s.All {
		return declared
	}
	return s.TenantID
}

type ctxKey string

const principalKey ctxKey = "acting_principal"

// ContextWithPrincipal stores the authenticated principal in the context.
func ContextWithPrincipal(ctx context.Context, p directory.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (directory.Principal, bool) {
	p, ok := ctx.Value(principalKey).(directory.Principal)
	return p, ok
}
