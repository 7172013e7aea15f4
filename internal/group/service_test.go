package group

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/gatewarden/gatewarden/internal/shared"
)

type memGroupStore struct {
	mu     sync.Mutex
	groups map[string]UserGroup
	nextID int
}

func newMemGroupStore(groups ...UserGroup) *memGroupStore {
	s := &memGroupStore{groups: make(map[string]UserGroup)}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	return s
}

func (s *memGroupStore) Save(ctx context.Context, g UserGroup) (UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	g.ID = "group-" + strconv.Itoa(s.nextID)
	s.groups[g.ID] = g
	return g, nil
}

func (s *memGroupStore) FindByID(ctx context.Context, id string) (UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return UserGroup{}, shared.ErrNotFound
	}
	return g, nil
}

func (s *memGroupStore) FindAll(ctx context.Context) ([]UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserGroup
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *memGroupStore) UpdateNameDescription(ctx context.Context, id, name, description string) (UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return UserGroup{}, shared.ErrNotFound
	}
	g.Name = name
	g.Description = description
	s.groups[id] = g
	return g, nil
}

func (s *memGroupStore) UpdateUsers(ctx context.Context, id string, users []string) (UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return UserGroup{}, shared.ErrNotFound
	}
	g.Users = users
	s.groups[id] = g
	return g, nil
}

func (s *memGroupStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

type stubRoleRefs struct {
	count int
	err   error
}

func (s *stubRoleRefs) CountRolesWithGroup(ctx context.Context, groupID string) (int, error) {
	return s.count, s.err
}

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

type recAudit struct {
	mu     sync.Mutex
	events []string
}

func (r *recAudit) Emit(ctx context.Context, eventKind string, g UserGroup, properties map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventKind)
}

func newTestService(store *memGroupStore, refs *stubRoleRefs) (*Service, *recInvalidator, *recAudit) {
	invalidator := &recInvalidator{}
	audit := &recAudit{}
	return NewService(store, refs, invalidator, audit, nil), invalidator, audit
}

func TestCreateGroupDeduplicatesSeedMembers(t *testing.T) {
	svc, invalidator, audit := newTestService(newMemGroupStore(), &stubRoleRefs{})

	created, err := svc.Create(context.Background(), UserGroup{
		Name:  "engineering",
		Users: []string{"u2", "u1", "u2", ""},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !reflect.DeepEqual(created.Users, []string{"u1", "u2"}) {
		t.Fatalf("users = %v", created.Users)
	}
	if len(invalidator.calls) != 1 || !reflect.DeepEqual(invalidator.calls[0], []string{"u1", "u2"}) {
		t.Fatalf("invalidations = %v", invalidator.calls)
	}
	if len(audit.events) != 1 || audit.events[0] != EventGroupCreated {
		t.Fatalf("audit events = %v", audit.events)
	}
}

func TestCreateGroupRejectsClientSuppliedID(t *testing.T) {
	svc, _, _ := newTestService(newMemGroupStore(), &stubRoleRefs{})

	_, err := svc.Create(context.Background(), UserGroup{ID: "x", Name: "eng"})
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddMembersInvalidatesTouchedUsersOnly(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng", Users: []string{"u1"}})
	svc, invalidator, audit := newTestService(store, &stubRoleRefs{})

	updated, err := svc.AddMembers(context.Background(), "g1", []string{"u2", "u3"})
	if err != nil {
		t.Fatalf("add members: %v", err)
	}
	if !reflect.DeepEqual(updated.Users, []string{"u1", "u2", "u3"}) {
		t.Fatalf("users = %v", updated.Users)
	}
	if len(invalidator.calls) != 1 || !reflect.DeepEqual(invalidator.calls[0], []string{"u2", "u3"}) {
		t.Fatalf("invalidations = %v", invalidator.calls)
	}
	if audit.events[0] != EventGroupMembersAdded {
		t.Fatalf("audit events = %v", audit.events)
	}
}

func TestRemoveMembersIgnoresAbsentUsers(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng", Users: []string{"u1", "u2"}})
	svc, invalidator, _ := newTestService(store, &stubRoleRefs{})

	updated, err := svc.RemoveMembers(context.Background(), "g1", []string{"u2", "u9"})
	if err != nil {
		t.Fatalf("remove members: %v", err)
	}
	if !reflect.DeepEqual(updated.Users, []string{"u1"}) {
		t.Fatalf("users = %v", updated.Users)
	}
	if len(invalidator.calls) != 1 || !reflect.DeepEqual(invalidator.calls[0], []string{"u2", "u9"}) {
		t.Fatalf("invalidations = %v", invalidator.calls)
	}
}

func TestMutateMembersRequiresUserIDs(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng"})
	svc, invalidator, _ := newTestService(store, &stubRoleRefs{})

	_, err := svc.AddMembers(context.Background(), "g1", nil)
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(invalidator.calls) != 0 {
		t.Fatalf("invalidation ran for rejected mutation")
	}
}

func TestDeleteGroupRefusedWhileReferenced(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng", Users: []string{"u1"}})
	svc, invalidator, _ := newTestService(store, &stubRoleRefs{count: 2})

	err := svc.Delete(context.Background(), "g1")
	if !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.FindByID(context.Background(), "g1"); err != nil {
		t.Fatalf("group deleted despite live references: %v", err)
	}
	if len(invalidator.calls) != 0 {
		t.Fatalf("invalidation ran for refused delete")
	}
}

func TestDeleteGroupInvalidatesMembers(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng", Users: []string{"u1", "u2"}})
	svc, invalidator, audit := newTestService(store, &stubRoleRefs{})

	if err := svc.Delete(context.Background(), "g1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.FindByID(context.Background(), "g1"); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("group still present: %v", err)
	}
	if len(invalidator.calls) != 1 || !reflect.DeepEqual(invalidator.calls[0], []string{"u1", "u2"}) {
		t.Fatalf("invalidations = %v", invalidator.calls)
	}
	if audit.events[len(audit.events)-1] != EventGroupDeleted {
		t.Fatalf("audit events = %v", audit.events)
	}
}

func TestUpdateGroupKeepsMembership(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng", Users: []string{"u1"}})
	svc, _, _ := newTestService(store, &stubRoleRefs{})

	updated, err := svc.Update(context.Background(), "g1", UpdatePatch{Name: "platform", Description: "infra"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "platform" || updated.Description != "infra" {
		t.Fatalf("updated = %+v", updated)
	}
	if !reflect.DeepEqual(updated.Users, []string{"u1"}) {
		t.Fatalf("membership changed on update: %v", updated.Users)
	}
}

func TestInvalidationFailureFailsMemberMutation(t *testing.T) {
	store := newMemGroupStore(UserGroup{ID: "g1", Name: "eng"})
	invalidator := &recInvalidator{err: errors.New("cache unreachable")}
	svc := NewService(store, &stubRoleRefs{}, invalidator, &recAudit{}, nil)

	if _, err := svc.AddMembers(context.Background(), "g1", []string{"u1"}); err == nil {
		t.Fatalf("expected invalidation failure to fail the mutation")
	}
}
