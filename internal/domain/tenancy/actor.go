// Package tenancy carries the caller identity handed to the finance core by the
// identity collaborator. Every service entry point reads it from the context.
package tenancy

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	actorKey     ctxKey = "bursar_actor"
	skipScopeKey ctxKey = "skip_tenant_scope"
)

// Roles understood by the HTTP layer. The core itself treats the role as opaque.
const (
	RoleAdmin      = "admin"
	RoleBursar     = "bursar"
	RoleAccountant = "accountant"
	RoleAuditor    = "auditor"
	RoleSystem     = "system"
)

// Actor is the (tenant, actor, role) triple of the current call.
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     string
}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// WithSystemActor is used by batch jobs acting on behalf of a tenant.
func WithSystemActor(ctx context.Context, tenantID uuid.UUID) context.Context {
	return WithActor(ctx, Actor{TenantID: tenantID, Role: RoleSystem})
}

// FromContext returns the actor, ok is false when none is set or the tenant is nil.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || a.TenantID == uuid.Nil {
		return Actor{}, false
	}
	return a, true
}

// TenantID extracts the tenant ID from the context.
func TenantID(ctx context.Context) (uuid.UUID, bool) {
	a, ok := FromContext(ctx)
	return a.TenantID, ok
}

// WithSkipTenantScope marks a context as allowed to read across tenants. Only the
// batch jobs that enumerate tenants use it.
func WithSkipTenantScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipScopeKey, true)
}

// SkipTenantScope reports whether tenant filtering is disabled for ctx.
func SkipTenantScope(ctx context.Context) bool {
	skip, ok := ctx.Value(skipScopeKey).(bool)
	return ok && skip
}
