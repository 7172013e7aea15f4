package role

import (
	"context"
	"strconv"
	"sync"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/group"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/tenant"
)

// memStore is an in-memory Store with the same permission-check semantics
// as the PostgreSQL repository: checked reads hide missing documents behind
// not-authorized.
type memStore struct {
	mu        sync.Mutex
	roles     map[string]Role
	nextID    int
	saveCalls int
}

func newMemStore(roles ...Role) *memStore {
	s := &memStore{roles: make(map[string]Role)}
	for _, r := range roles {
		s.roles[r.ID] = r
	}
	return s
}

func (s *memStore) Save(ctx context.Context, r Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	s.nextID++
	r.ID = "role-" + strconv.Itoa(s.nextID)
	s.roles[r.ID] = r
	return r, nil
}

func (s *memStore) FindByID(ctx context.Context, id string, perm acl.Permission) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		if perm == "" {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, shared.ErrNotAuthorized
	}
	if perm != "" && !authorized(ctx, r, perm) {
		return Role{}, shared.ErrNotAuthorized
	}
	return r, nil
}

func (s *memStore) FindAllByID(ctx context.Context, ids []string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) FindAll(ctx context.Context, perm acl.Permission) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, r := range s.roles {
		if perm == "" || authorized(ctx, r, perm) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpdateMembership(ctx context.Context, id string, userIDs, groupIDs []string, perm acl.Permission) (Role, error) {
	if perm != "" {
		if _, err := s.FindByID(ctx, id, perm); err != nil {
			return Role{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	r.AssignedUserIDs = userIDs
	r.AssignedGroupIDs = groupIDs
	s.roles[id] = r
	return r, nil
}

func (s *memStore) UpdateNameDescription(ctx context.Context, id, name, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	r.Name = name
	r.Description = description
	s.roles[id] = r
	return r, nil
}

func (s *memStore) UpdatePolicies(ctx context.Context, id string, policies acl.PolicySet) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	r.Policies = policies
	s.roles[id] = r
	return r, nil
}

func (s *memStore) ArchiveByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *memStore) FindIDsForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.roles {
		for _, u := range r.AssignedUserIDs {
			if u == userID {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// memGroups is an in-memory GroupStore that counts lookups so tests can
// assert the resolver's short-circuit.
type memGroups struct {
	mu     sync.Mutex
	groups map[string]group.UserGroup
	calls  int
}

func newMemGroups(groups ...group.UserGroup) *memGroups {
	s := &memGroups{groups: make(map[string]group.UserGroup)}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	return s
}

func (s *memGroups) FindAllByID(ctx context.Context, ids []string) ([]group.UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	var out []group.UserGroup
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// recInvalidator records every invalidation call.
type recInvalidator struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recInvalidator) InvalidateUsers(ctx context.Context, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), userIDs...))
	return r.err
}

func (r *recInvalidator) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, call := range r.calls {
		out = append(out, call...)
	}
	return out
}

// recAudit records emitted event kinds.
type recAudit struct {
	mu     sync.Mutex
	events []string
}

func (r *recAudit) Emit(ctx context.Context, eventKind string, ro Role, properties map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventKind)
}

// stubTenants serves a fixed default tenant.
type stubTenants struct {
	tenant tenant.Tenant
	calls  int
}

func (s *stubTenants) DefaultTenant(ctx context.Context) (tenant.Tenant, error) {
	s.calls++
	return s.tenant, nil
}

func actorContext(userID string, roleIDs ...string) context.Context {
	return shared.ContextWithActor(context.Background(), &shared.Actor{UserID: userID, RoleIDs: roleIDs})
}

func rolePolicies(granteeRoleID string) acl.PolicySet {
	return acl.PolicySet{
		{Permission: acl.ReadRoles, RoleIDs: []string{granteeRoleID}},
		{Permission: acl.ManageRoles, RoleIDs: []string{granteeRoleID}},
		{Permission: acl.DeleteRoles, RoleIDs: []string{granteeRoleID}},
		{Permission: acl.AssignRoles, RoleIDs: []string{granteeRoleID}},
		{Permission: acl.UnassignRoles, RoleIDs: []string{granteeRoleID}},
	}
}
