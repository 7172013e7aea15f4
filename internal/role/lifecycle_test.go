package role

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/tenant"
)

func tenantPolicies() acl.PolicySet {
	return acl.PolicySet{
		{Permission: acl.CreateRoles, RoleIDs: []string{"admin-role"}},
		{Permission: acl.ReadRoles, RoleIDs: []string{"admin-role", "viewer-role"}},
		{Permission: acl.ManageRoles, RoleIDs: []string{"admin-role"}},
		{Permission: acl.DeleteRoles, RoleIDs: []string{"admin-role"}},
		{Permission: acl.AssignRoles, RoleIDs: []string{"admin-role"}},
		{Permission: acl.UnassignRoles, RoleIDs: []string{"admin-role"}},
	}
}

type lifecycleFixture struct {
	store       *memStore
	groups      *memGroups
	tenants     *stubTenants
	invalidator *recInvalidator
	audit       *recAudit
	lifecycle   *Lifecycle
}

func newLifecycleFixture(defaultUserRoleID string, roles ...Role) *lifecycleFixture {
	store := newMemStore(roles...)
	groups := newMemGroups(group.UserGroup{ID: "g1", Users: []string{"u1", "u2"}})
	tenants := &stubTenants{tenant: tenant.Tenant{ID: "tenant-1", Policies: tenantPolicies()}}
	invalidator := &recInvalidator{}
	audit := &recAudit{}
	resolver := NewResolver(groups)
	membership := NewManager(store, resolver, invalidator, audit)
	lifecycle := NewLifecycle(LifecycleConfig{
		Store:             store,
		Resolver:          resolver,
		Membership:        membership,
		Invalidator:       invalidator,
		Tenants:           tenants,
		Generator:         acl.NewGenerator(),
		Audit:             audit,
		DefaultUserRoleID: defaultUserRoleID,
	})
	return &lifecycleFixture{store: store, groups: groups, tenants: tenants, invalidator: invalidator, audit: audit, lifecycle: lifecycle}
}

func TestCreateRejectsClientSuppliedID(t *testing.T) {
	fx := newLifecycleFixture("")

	_, err := fx.lifecycle.Create(actorContext("actor", "admin-role"), Role{ID: "x", Name: "ops"})
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fx.store.saveCalls != 0 {
		t.Fatalf("store written despite invalid create")
	}
	if fx.tenants.calls != 0 {
		t.Fatalf("tenant source consulted despite invalid create")
	}
}

func TestCreateRequiresTenantPermission(t *testing.T) {
	fx := newLifecycleFixture("")

	_, err := fx.lifecycle.Create(actorContext("actor", "viewer-role"), Role{Name: "ops"})
	if !errors.Is(err, shared.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if fx.store.saveCalls != 0 {
		t.Fatalf("store written despite rejected create")
	}
}

func TestCreateSeedsPoliciesFromTenant(t *testing.T) {
	fx := newLifecycleFixture("")

	created, err := fx.lifecycle.Create(actorContext("actor", "admin-role"), Role{Name: "ops"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.TenantID != "tenant-1" {
		t.Fatalf("tenant id = %q", created.TenantID)
	}
	if got := created.Policies.Grantees(acl.ReadRoles); !reflect.DeepEqual(got, []string{"admin-role", "viewer-role"}) {
		t.Fatalf("read grantees = %v", got)
	}
	if !created.Policies.Has(acl.ManageRoles) {
		t.Fatalf("user-created role should keep its manage grant")
	}
	// The tenant-level create grant must not cascade onto the role.
	if created.Policies.Has(acl.CreateRoles) {
		t.Fatalf("create grant leaked onto the role")
	}
}

func TestCreateAutoCreatedRoleIsStrippedAndBypassesGate(t *testing.T) {
	fx := newLifecycleFixture("")

	// No create permission on the actor: system-generated roles bypass the
	// gate because they originate from internal provisioning flows.
	created, err := fx.lifecycle.Create(actorContext("actor", "viewer-role"), Role{
		Name:              "Workspace Admin",
		DefaultDomainType: acl.DomainWorkspace,
		DefaultDomainID:   "ws-7",
	})
	if err != nil {
		t.Fatalf("create auto-created: %v", err)
	}
	if created.Policies.Has(acl.ManageRoles) || created.Policies.Has(acl.DeleteRoles) {
		t.Fatalf("auto-created role kept self-management grants: %v", created.Policies)
	}
	if !created.Policies.Has(acl.ReadRoles) {
		t.Fatalf("read grant should survive the strip")
	}
	stored, err := fx.store.FindByID(context.Background(), created.ID, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Policies.Has(acl.ManageRoles) || stored.Policies.Has(acl.DeleteRoles) {
		t.Fatalf("strip was not persisted")
	}
}

func TestCreateInvalidatesReaders(t *testing.T) {
	reader := Role{
		ID:              "admin-role",
		Policies:        rolePolicies("admin-role"),
		AssignedUserIDs: []string{"admin-user"},
	}
	fx := newLifecycleFixture("", reader)

	if _, err := fx.lifecycle.Create(actorContext("admin-user", "admin-role"), Role{Name: "ops"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	all := fx.invalidator.all()
	if !reflect.DeepEqual(all, []string{"admin-user"}) {
		t.Fatalf("invalidated users = %v", all)
	}
}

func TestUpdateChangesNameAndDescriptionOnly(t *testing.T) {
	existing := Role{
		ID:              "r1",
		Name:            "old",
		Description:     "old desc",
		Policies:        rolePolicies("admin-role"),
		AssignedUserIDs: []string{"u1"},
	}
	fx := newLifecycleFixture("", existing)

	updated, err := fx.lifecycle.Update(actorContext("actor", "admin-role"), "r1", UpdatePatch{Name: "new", Description: "new desc"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "new" || updated.Description != "new desc" {
		t.Fatalf("updated = %+v", updated)
	}
	if !reflect.DeepEqual(updated.AssignedUserIDs, []string{"u1"}) {
		t.Fatalf("membership must survive update: %v", updated.AssignedUserIDs)
	}
}

func TestUpdateDefaultUserRoleRejected(t *testing.T) {
	defaultRole := Role{ID: "default-user-role", Name: "Default", Policies: rolePolicies("admin-role")}
	fx := newLifecycleFixture("default-user-role", defaultRole)

	_, err := fx.lifecycle.Update(actorContext("actor", "admin-role"), "default-user-role", UpdatePatch{Name: "hijacked"})
	if !errors.Is(err, shared.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	stored, _ := fx.store.FindByID(context.Background(), "default-user-role", "")
	if stored.Name != "Default" {
		t.Fatalf("default role was modified: %q", stored.Name)
	}
}

func TestUpdateWithoutManagePermission(t *testing.T) {
	fx := newLifecycleFixture("", Role{ID: "r1", Name: "ops", Policies: rolePolicies("admin-role")})

	_, err := fx.lifecycle.Update(actorContext("actor", "viewer-role"), "r1", UpdatePatch{Name: "new"})
	if !errors.Is(err, shared.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestArchiveEmptiesMembershipThenDeletes(t *testing.T) {
	target := Role{
		ID:               "r1",
		Name:             "ops",
		Policies:         rolePolicies("admin-role"),
		AssignedUserIDs:  []string{"u3"},
		AssignedGroupIDs: []string{"g1"},
	}
	fx := newLifecycleFixture("", target)
	ctx := actorContext("actor", "admin-role")

	if err := fx.lifecycle.Archive(ctx, "r1"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := fx.store.FindByID(context.Background(), "r1", ""); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected not found after archive, got %v", err)
	}
	// Two unassign passes (groups, then users) plus the reader pass.
	if len(fx.invalidator.calls) != 3 {
		t.Fatalf("expected 3 invalidation passes, got %d: %v", len(fx.invalidator.calls), fx.invalidator.calls)
	}
	if got := fx.invalidator.calls[0]; !reflect.DeepEqual(got, []string{"u1", "u2", "u3"}) {
		t.Fatalf("group unassign pass = %v", got)
	}
	if got := fx.invalidator.calls[1]; !reflect.DeepEqual(got, []string{"u3"}) {
		t.Fatalf("user unassign pass = %v", got)
	}
	if fx.audit.events[len(fx.audit.events)-1] != EventRoleDeleted {
		t.Fatalf("audit events = %v", fx.audit.events)
	}
}

func TestArchiveUnauthorizedBeforeAnyMutation(t *testing.T) {
	target := Role{
		ID:              "r1",
		Policies:        rolePolicies("admin-role"),
		AssignedUserIDs: []string{"u1"},
	}
	fx := newLifecycleFixture("", target)

	err := fx.lifecycle.Archive(actorContext("actor", "viewer-role"), "r1")
	if !errors.Is(err, shared.ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	stored, _ := fx.store.FindByID(context.Background(), "r1", "")
	if !reflect.DeepEqual(stored.AssignedUserIDs, []string{"u1"}) {
		t.Fatalf("membership mutated before authorization: %v", stored.AssignedUserIDs)
	}
	if len(fx.invalidator.calls) != 0 {
		t.Fatalf("invalidation ran for rejected archive")
	}
}

func TestArchiveMissingRoleHidesExistence(t *testing.T) {
	fx := newLifecycleFixture("")

	err := fx.lifecycle.Archive(actorContext("actor", "admin-role"), "ghost")
	if !errors.Is(err, shared.ErrNotAuthorized) {
		t.Fatalf("expected not authorized for missing role, got %v", err)
	}
}

func TestEffectiveUsersThroughLifecycle(t *testing.T) {
	target := Role{
		ID:               "r1",
		Policies:         rolePolicies("admin-role"),
		AssignedUserIDs:  []string{"u9"},
		AssignedGroupIDs: []string{"g1"},
	}
	fx := newLifecycleFixture("", target)

	users, err := fx.lifecycle.EffectiveUsers(actorContext("actor", "admin-role"), "r1")
	if err != nil {
		t.Fatalf("effective users: %v", err)
	}
	if !reflect.DeepEqual(users, []string{"u1", "u2", "u9"}) {
		t.Fatalf("effective users = %v", users)
	}
}
