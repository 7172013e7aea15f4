package group

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Audit event kinds emitted by the group service.
const (
	EventGroupCreated        = "group.created"
	EventGroupUpdated        = "group.updated"
	EventGroupDeleted        = "group.deleted"
	EventGroupMembersAdded   = "group.members_added"
	EventGroupMembersRemoved = "group.members_removed"
)

// Store is the persistence surface the service needs.
type Store interface {
	Save(ctx context.Context, g UserGroup) (UserGroup, error)
	FindByID(ctx context.Context, id string) (UserGroup, error)
	FindAll(ctx context.Context) ([]UserGroup, error)
	UpdateNameDescription(ctx context.Context, id, name, description string) (UserGroup, error)
	UpdateUsers(ctx context.Context, id string, users []string) (UserGroup, error)
	DeleteByID(ctx context.Context, id string) error
}

// RoleReferences answers whether roles still point at a group. Deletion is
// refused while any do, so a role's assigned_group_ids never dangles.
type RoleReferences interface {
	CountRolesWithGroup(ctx context.Context, groupID string) (int, error)
}

// Invalidator evicts cached permission state for users whose group
// membership changed.
type Invalidator interface {
	InvalidateUsers(ctx context.Context, userIDs []string) error
}

// AuditEmitter records group mutations. Emission is fire-and-forget.
type AuditEmitter interface {
	Emit(ctx context.Context, eventKind string, g UserGroup, properties map[string]any)
}

// UpdatePatch carries the mutable descriptive fields of a group.
type UpdatePatch struct {
	Name        string
	Description string
}

// Service owns the user-group lifecycle. Any membership change invalidates
// the affected users: roles assigned to the group reach them transitively,
// so joining or leaving a group changes their effective permissions.
type Service struct {
	store       Store
	roles       RoleReferences
	invalidator Invalidator
	audit       AuditEmitter
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, roles RoleReferences, invalidator Invalidator, audit AuditEmitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, roles: roles, invalidator: invalidator, audit: audit, logger: logger}
}

// Create validates and persists a new group.
func (s *Service) Create(ctx context.Context, g UserGroup) (UserGroup, error) {
	if g.ID != "" {
		return UserGroup{}, fmt.Errorf("%w: group id is assigned by the store", shared.ErrValidation)
	}
	if strings.TrimSpace(g.Name) == "" {
		return UserGroup{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	g.Users = dedupe(g.Users)

	created, err := s.store.Save(ctx, g)
	if err != nil {
		return UserGroup{}, err
	}
	// Seed members join with permissions already in effect; still evict in
	// case the group id was pre-wired into a role.
	if len(created.Users) > 0 {
		if err := s.invalidator.InvalidateUsers(ctx, created.Users); err != nil {
			return UserGroup{}, fmt.Errorf("invalidate group members: %w", err)
		}
	}
	s.audit.Emit(ctx, EventGroupCreated, created, map[string]any{"members": len(created.Users)})
	return created, nil
}

// Get loads a single group.
func (s *Service) Get(ctx context.Context, id string) (UserGroup, error) {
	return s.store.FindByID(ctx, id)
}

// List returns all groups.
func (s *Service) List(ctx context.Context) ([]UserGroup, error) {
	return s.store.FindAll(ctx)
}

// Update changes a group's name and description; membership is untouched.
func (s *Service) Update(ctx context.Context, id string, patch UpdatePatch) (UserGroup, error) {
	name := strings.TrimSpace(patch.Name)
	if name == "" {
		return UserGroup{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	updated, err := s.store.UpdateNameDescription(ctx, id, name, strings.TrimSpace(patch.Description))
	if err != nil {
		return UserGroup{}, err
	}
	s.audit.Emit(ctx, EventGroupUpdated, updated, nil)
	return updated, nil
}

// Delete removes a group. Deletion is refused while any role still assigns
// the group; callers unassign it from those roles first.
func (s *Service) Delete(ctx context.Context, id string) error {
	g, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.roles.CountRolesWithGroup(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: group is assigned to %d role(s)", shared.ErrConflict, refs)
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	if len(g.Users) > 0 {
		if err := s.invalidator.InvalidateUsers(ctx, g.Users); err != nil {
			return fmt.Errorf("invalidate group members: %w", err)
		}
	}
	s.audit.Emit(ctx, EventGroupDeleted, g, map[string]any{"members": len(g.Users)})
	return nil
}

// AddMembers adds users to the group. Users already present are kept; the
// write is a full-set overwrite.
func (s *Service) AddMembers(ctx context.Context, id string, userIDs []string) (UserGroup, error) {
	return s.mutateMembers(ctx, id, userIDs, true)
}

// RemoveMembers removes users from the group. Absent users are ignored.
func (s *Service) RemoveMembers(ctx context.Context, id string, userIDs []string) (UserGroup, error) {
	return s.mutateMembers(ctx, id, userIDs, false)
}

func (s *Service) mutateMembers(ctx context.Context, id string, userIDs []string, add bool) (UserGroup, error) {
	if len(userIDs) == 0 {
		return UserGroup{}, fmt.Errorf("%w: user ids required", shared.ErrValidation)
	}
	g, err := s.store.FindByID(ctx, id)
	if err != nil {
		return UserGroup{}, err
	}

	var next []string
	if add {
		next = dedupe(append(append([]string(nil), g.Users...), userIDs...))
	} else {
		drop := make(map[string]struct{}, len(userIDs))
		for _, u := range userIDs {
			drop[u] = struct{}{}
		}
		for _, u := range g.Users {
			if _, gone := drop[u]; !gone {
				next = append(next, u)
			}
		}
	}

	updated, err := s.store.UpdateUsers(ctx, id, next)
	if err != nil {
		return UserGroup{}, err
	}

	// The touched users are the ones whose effective role set may have
	// changed; members untouched by this call keep valid cache entries.
	if err := s.invalidator.InvalidateUsers(ctx, dedupe(userIDs)); err != nil {
		return UserGroup{}, fmt.Errorf("invalidate group members: %w", err)
	}

	event := EventGroupMembersAdded
	if !add {
		event = EventGroupMembersRemoved
	}
	s.audit.Emit(ctx, event, updated, map[string]any{"userCount": len(userIDs)})
	return updated, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
