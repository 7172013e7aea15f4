package role

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// UpdatePatch carries the only two fields a role update may change. Anything
// else a client sends is dropped before it gets here.
type UpdatePatch struct {
	Name        string
	Description string
}

// Lifecycle orchestrates role creation, update and archival.
type Lifecycle struct {
	store             Store
	resolver          *Resolver
	membership        *Manager
	invalidator       Invalidator
	tenants           TenantSource
	generator         *acl.Generator
	audit             AuditEmitter
	defaultUserRoleID string
	logger            *slog.Logger
}

// LifecycleConfig groups the Lifecycle dependencies.
type LifecycleConfig struct {
	Store       Store
	Resolver    *Resolver
	Membership  *Manager
	Invalidator Invalidator
	Tenants     TenantSource
	Generator   *acl.Generator
	Audit       AuditEmitter
	// DefaultUserRoleID names the platform's built-in default user role,
	// which rejects updates unconditionally.
	DefaultUserRoleID string
	Logger            *slog.Logger
}

// NewLifecycle constructs a Lifecycle.
func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:             cfg.Store,
		resolver:          cfg.Resolver,
		membership:        cfg.Membership,
		invalidator:       cfg.Invalidator,
		tenants:           cfg.Tenants,
		generator:         cfg.Generator,
		audit:             cfg.Audit,
		defaultUserRoleID: cfg.DefaultUserRoleID,
		logger:            logger,
	}
}

// Create validates and persists a new role. Policies are seeded from the
// owning tenant's policy set; ids are store-assigned. Auto-created roles
// (DefaultDomainType set) bypass the tenant authorization gate because they
// originate from internal provisioning flows, and they lose their
// manage/delete-self grants right after the insert, which makes them
// uneditable from then on.
func (l *Lifecycle) Create(ctx context.Context, r Role) (Role, error) {
	if r.ID != "" {
		return Role{}, fmt.Errorf("%w: role id is assigned by the store", shared.ErrValidation)
	}
	if strings.TrimSpace(r.Name) == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}

	tnt, err := l.tenants.DefaultTenant(ctx)
	if err != nil {
		return Role{}, err
	}
	if !r.IsAutoCreated() {
		actor := shared.ActorFromContext(ctx)
		if !actor.HasAnyRole(tnt.Policies.GranteeSet(acl.CreateRoles)) {
			return Role{}, fmt.Errorf("%w: create role", shared.ErrNotAuthorized)
		}
	}

	r.TenantID = tnt.ID
	r.Policies = l.generator.ChildPolicies(tnt.Policies, acl.DomainTenant, acl.DomainRole)

	created, err := l.store.Save(ctx, r)
	if err != nil {
		return Role{}, err
	}

	final := created
	if created.IsAutoCreated() {
		final, err = l.store.UpdatePolicies(ctx, created.ID, created.Policies.Without(acl.ManageRoles, acl.DeleteRoles))
	} else {
		final, err = l.store.FindByID(ctx, created.ID, acl.ReadRoles)
	}
	if err != nil {
		return Role{}, err
	}

	// A new role existing changes what its readers are allowed to see, so
	// their cached permission state goes stale. Use the pre-strip policies:
	// the strip only removes self-management grants.
	if err := l.invalidateReaders(ctx, created.Policies); err != nil {
		return Role{}, err
	}

	l.audit.Emit(ctx, EventRoleCreated, final, map[string]any{"autoCreated": final.IsAutoCreated()})
	return final, nil
}

// Update changes a role's name and description; nothing else. The built-in
// default user role rejects updates unconditionally.
func (l *Lifecycle) Update(ctx context.Context, id string, patch UpdatePatch) (Role, error) {
	if _, err := l.store.FindByID(ctx, id, acl.ManageRoles); err != nil {
		return Role{}, err
	}
	if l.defaultUserRoleID != "" && id == l.defaultUserRoleID {
		return Role{}, fmt.Errorf("%w: update role", shared.ErrNotAuthorized)
	}
	name := strings.TrimSpace(patch.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}

	updated, err := l.store.UpdateNameDescription(ctx, id, name, strings.TrimSpace(patch.Description))
	if err != nil {
		return Role{}, err
	}
	l.audit.Emit(ctx, EventRoleUpdated, updated, nil)
	return updated, nil
}

// Archive removes a role: membership is emptied first (each pass performing
// its own invalidation), then the document is deleted, then the caches of
// everyone who could read the role are invalidated. Authorization and
// existence are settled before any mutation happens.
func (l *Lifecycle) Archive(ctx context.Context, id string) error {
	r, err := l.store.FindByID(ctx, id, acl.DeleteRoles)
	if err != nil {
		return err
	}

	if len(r.AssignedGroupIDs) > 0 {
		if _, err := l.membership.UnassignGroupsWithoutPermission(ctx, id, r.AssignedGroupIDs); err != nil {
			return err
		}
	}
	if len(r.AssignedUserIDs) > 0 {
		if _, err := l.membership.UnassignUsersWithoutPermission(ctx, id, r.AssignedUserIDs); err != nil {
			return err
		}
	}

	if err := l.store.ArchiveByID(ctx, id); err != nil {
		return err
	}
	if err := l.invalidateReaders(ctx, r.Policies); err != nil {
		return err
	}

	l.audit.Emit(ctx, EventRoleDeleted, r, nil)
	return nil
}

// Get loads a role the actor can read.
func (l *Lifecycle) Get(ctx context.Context, id string) (Role, error) {
	return l.store.FindByID(ctx, id, acl.ReadRoles)
}

// List returns the roles the actor can read, sorted by name with
// locale-aware, case-insensitive collation.
func (l *Lifecycle) List(ctx context.Context) ([]Role, error) {
	roles, err := l.store.FindAll(ctx, acl.ReadRoles)
	if err != nil {
		return nil, err
	}
	coll := collate.New(language.English, collate.IgnoreCase)
	coll.Sort(roleNameSorter(roles))
	return roles, nil
}

// EffectiveUsers answers "who can act under this role".
func (l *Lifecycle) EffectiveUsers(ctx context.Context, id string) ([]string, error) {
	r, err := l.store.FindByID(ctx, id, acl.ReadRoles)
	if err != nil {
		return nil, err
	}
	return l.resolver.EffectiveUsers(ctx, r)
}

// invalidateReaders evicts cached permission state for every user reachable
// from the roles granted read access by the given policy set.
func (l *Lifecycle) invalidateReaders(ctx context.Context, policies acl.PolicySet) error {
	readerRoleIDs := policies.Grantees(acl.ReadRoles)
	if len(readerRoleIDs) == 0 {
		return nil
	}
	readers, err := l.store.FindAllByID(ctx, readerRoleIDs)
	if err != nil {
		return err
	}
	var affected []string
	for _, reader := range readers {
		users, err := l.resolver.EffectiveUsers(ctx, reader)
		if err != nil {
			return err
		}
		affected = append(affected, users...)
	}
	return l.invalidator.InvalidateUsers(ctx, affected)
}

type roleNameSorter []Role

func (s roleNameSorter) Len() int           { return len(s) }
func (s roleNameSorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s roleNameSorter) Bytes(i int) []byte { return []byte(s[i].Name) }
