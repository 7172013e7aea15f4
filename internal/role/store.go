package role

import (
	"context"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/tenant"
)

// Store is the persistence contract for roles. Permission-checked reads
// evaluate the given permission against the actor in context and return
// shared.ErrNotAuthorized for missing documents too, so callers cannot
// distinguish "absent" from "forbidden". Methods taking an empty permission
// skip the check; they exist for internal flows (archival cascade, cache
// fill) that act without an acting user.
type Store interface {
	// Save inserts a new role and assigns its id.
	Save(ctx context.Context, r Role) (Role, error)
	// FindByID loads a role, checking perm unless it is empty.
	FindByID(ctx context.Context, id string, perm acl.Permission) (Role, error)
	// FindAllByID loads the existing roles among ids, without permission checks.
	FindAllByID(ctx context.Context, ids []string) ([]Role, error)
	// FindAll returns the roles the actor holds perm on.
	FindAll(ctx context.Context, perm acl.Permission) ([]Role, error)
	// UpdateMembership overwrites both membership sets. The write is the
	// unit of atomicity: concurrent callers race last-writer-wins. perm is
	// checked before the write unless empty.
	UpdateMembership(ctx context.Context, id string, userIDs, groupIDs []string, perm acl.Permission) (Role, error)
	// UpdateNameDescription updates the two mutable fields of a role.
	UpdateNameDescription(ctx context.Context, id, name, description string) (Role, error)
	// UpdatePolicies overwrites the role's policy set.
	UpdatePolicies(ctx context.Context, id string, policies acl.PolicySet) (Role, error)
	// ArchiveByID removes the role document; later lookups return not-found.
	ArchiveByID(ctx context.Context, id string) error
	// FindIDsForUser returns ids of roles the user is assigned to directly
	// or through a group. Feeds the lazy permission-cache fill.
	FindIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// GroupStore is the slice of group persistence the role engine consumes.
type GroupStore interface {
	FindAllByID(ctx context.Context, ids []string) ([]group.UserGroup, error)
}

// Invalidator evicts cached permission state for a set of users. The call
// must complete before the triggering mutation reports success.
type Invalidator interface {
	InvalidateUsers(ctx context.Context, userIDs []string) error
}

// AuditEmitter records lifecycle and membership events. Fire-and-forget:
// implementations swallow and log their own failures.
type AuditEmitter interface {
	Emit(ctx context.Context, eventKind string, r Role, properties map[string]any)
}

// TenantSource supplies the tenant whose policies seed new role policies.
type TenantSource interface {
	DefaultTenant(ctx context.Context) (tenant.Tenant, error)
}
