package role

import (
	"context"
	"fmt"

	"github.com/gatewarden/gatewarden/internal/acl"
)

// Audit event kinds emitted by the engine.
const (
	EventRoleCreated      = "role.created"
	EventRoleUpdated      = "role.updated"
	EventRoleDeleted      = "role.deleted"
	EventUsersAssigned    = "role.users_assigned"
	EventUsersUnassigned  = "role.users_unassigned"
	EventGroupsAssigned   = "role.groups_assigned"
	EventGroupsUnassigned = "role.groups_unassigned"
)

// Manager mutates role membership. Every mutation resolves the effective
// user set before and after the write and invalidates the cached permission
// state for the union of both; removals change effective permissions just
// like additions do.
//
// Concurrent mutations against the same role are not serialized here. Each
// call computes its target sets from its own read and the store write
// overwrites the full value, so two racing calls can lose one update
// (last-writer-wins). See UpdateMembership on the Store contract.
type Manager struct {
	store       Store
	resolver    *Resolver
	invalidator Invalidator
	audit       AuditEmitter
}

// NewManager constructs a membership Manager.
func NewManager(store Store, resolver *Resolver, invalidator Invalidator, audit AuditEmitter) *Manager {
	return &Manager{store: store, resolver: resolver, invalidator: invalidator, audit: audit}
}

// AssignUsers adds users to the role's direct membership. Already-present
// ids are no-ops.
func (m *Manager) AssignUsers(ctx context.Context, roleID string, userIDs []string) (Role, error) {
	updated, err := m.mutate(ctx, roleID, userIDs, nil, true, acl.AssignRoles)
	if err != nil {
		return Role{}, err
	}
	if len(userIDs) > 0 {
		m.audit.Emit(ctx, EventUsersAssigned, updated, map[string]any{"numberOfAssignedUsers": len(userIDs)})
	}
	return updated, nil
}

// UnassignUsers removes users from the role's direct membership. Absent ids
// are no-ops, not errors.
func (m *Manager) UnassignUsers(ctx context.Context, roleID string, userIDs []string) (Role, error) {
	updated, err := m.mutate(ctx, roleID, userIDs, nil, false, acl.UnassignRoles)
	if err != nil {
		return Role{}, err
	}
	if len(userIDs) > 0 {
		m.audit.Emit(ctx, EventUsersUnassigned, updated, map[string]any{"numberOfUnassignedUsers": len(userIDs)})
	}
	return updated, nil
}

// AssignGroups adds user groups to the role.
func (m *Manager) AssignGroups(ctx context.Context, roleID string, groupIDs []string) (Role, error) {
	updated, err := m.mutate(ctx, roleID, nil, groupIDs, true, acl.AssignRoles)
	if err != nil {
		return Role{}, err
	}
	if len(groupIDs) > 0 {
		m.audit.Emit(ctx, EventGroupsAssigned, updated, map[string]any{"numberOfAssignedGroups": len(groupIDs)})
	}
	return updated, nil
}

// UnassignGroups removes user groups from the role.
func (m *Manager) UnassignGroups(ctx context.Context, roleID string, groupIDs []string) (Role, error) {
	updated, err := m.mutate(ctx, roleID, nil, groupIDs, false, acl.UnassignRoles)
	if err != nil {
		return Role{}, err
	}
	if len(groupIDs) > 0 {
		m.audit.Emit(ctx, EventGroupsUnassigned, updated, map[string]any{"numberOfUnassignedGroups": len(groupIDs)})
	}
	return updated, nil
}

// AssignUsersAndGroups assigns both in one store write and a single
// invalidation pass.
func (m *Manager) AssignUsersAndGroups(ctx context.Context, roleID string, userIDs, groupIDs []string) (Role, error) {
	updated, err := m.mutate(ctx, roleID, userIDs, groupIDs, true, acl.AssignRoles)
	if err != nil {
		return Role{}, err
	}
	if len(userIDs) > 0 {
		m.audit.Emit(ctx, EventUsersAssigned, updated, map[string]any{"numberOfAssignedUsers": len(userIDs)})
	}
	if len(groupIDs) > 0 {
		m.audit.Emit(ctx, EventGroupsAssigned, updated, map[string]any{"numberOfAssignedGroups": len(groupIDs)})
	}
	return updated, nil
}

// UnassignUsersWithoutPermission is the archival-cascade variant: no
// permission check on the write and no per-category audit event. The caller
// has already authorized the archive itself.
func (m *Manager) UnassignUsersWithoutPermission(ctx context.Context, roleID string, userIDs []string) (Role, error) {
	return m.mutate(ctx, roleID, userIDs, nil, false, "")
}

// UnassignGroupsWithoutPermission is the archival-cascade variant of
// UnassignGroups.
func (m *Manager) UnassignGroupsWithoutPermission(ctx context.Context, roleID string, groupIDs []string) (Role, error) {
	return m.mutate(ctx, roleID, nil, groupIDs, false, "")
}

func (m *Manager) mutate(ctx context.Context, roleID string, userIDs, groupIDs []string, assign bool, perm acl.Permission) (Role, error) {
	current, err := m.store.FindByID(ctx, roleID, "")
	if err != nil {
		return Role{}, err
	}
	pre, err := m.resolver.EffectiveUsers(ctx, current)
	if err != nil {
		return Role{}, err
	}

	var newUsers, newGroups []string
	if assign {
		newUsers = unionIDs(current.AssignedUserIDs, userIDs)
		newGroups = unionIDs(current.AssignedGroupIDs, groupIDs)
	} else {
		newUsers = subtractIDs(current.AssignedUserIDs, userIDs)
		newGroups = subtractIDs(current.AssignedGroupIDs, groupIDs)
	}

	updated, err := m.store.UpdateMembership(ctx, roleID, newUsers, newGroups, perm)
	if err != nil {
		return Role{}, err
	}

	post, err := m.resolver.EffectiveUsers(ctx, updated)
	if err != nil {
		return Role{}, err
	}
	if err := m.invalidator.InvalidateUsers(ctx, unionIDs(pre, post)); err != nil {
		return Role{}, fmt.Errorf("role: invalidate after membership change on %s: %w", roleID, err)
	}
	return updated, nil
}
