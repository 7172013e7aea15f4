package role

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/platform/db"
	"github.com/gatewarden/gatewarden/internal/shared"
)

const roleColumns = `id, tenant_id, name, description, policies,
	COALESCE(assigned_user_ids, '{}'), COALESCE(assigned_group_ids, '{}'),
	COALESCE(default_domain_type, ''), COALESCE(default_domain_id, ''),
	is_provisioned, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for roles. Policies are
// stored as jsonb, membership sets as text arrays.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts a new role and assigns its id.
func (r *Repository) Save(ctx context.Context, ro Role) (Role, error) {
	policiesRaw, err := marshalPolicies(ro.Policies)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO roles
		(id, tenant_id, name, description, policies, assigned_user_ids, assigned_group_ids, default_domain_type, default_domain_id, is_provisioned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+roleColumns,
		uuid.NewString(), ro.TenantID, ro.Name, ro.Description, policiesRaw,
		emptyIfNil(ro.AssignedUserIDs), emptyIfNil(ro.AssignedGroupIDs),
		string(ro.DefaultDomainType), ro.DefaultDomainID, ro.IsProvisioned)
	saved, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role name already in use", shared.ErrConflict)
		}
		return Role{}, fmt.Errorf("role: save: %w", err)
	}
	return saved, nil
}

// FindByID loads a role. With a non-empty perm the read is permission
// checked and a missing document surfaces as not-authorized, the same as a
// forbidden one; the store does not leak existence.
func (r *Repository) FindByID(ctx context.Context, id string, perm acl.Permission) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	ro, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if perm == "" {
				return Role{}, shared.ErrNotFound
			}
			return Role{}, shared.ErrNotAuthorized
		}
		return Role{}, fmt.Errorf("role: find %s: %w", id, err)
	}
	if perm != "" && !authorized(ctx, ro, perm) {
		return Role{}, shared.ErrNotAuthorized
	}
	return ro, nil
}

// FindAllByID loads the existing roles among ids. Missing ids are skipped.
func (r *Repository) FindAllByID(ctx context.Context, ids []string) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("role: find all by id: %w", err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

// FindAll returns every role the actor holds perm on.
func (r *Repository) FindAll(ctx context.Context, perm acl.Permission) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("role: find all: %w", err)
	}
	defer rows.Close()
	all, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if perm == "" {
		return all, nil
	}
	visible := make([]Role, 0, len(all))
	for _, ro := range all {
		if authorized(ctx, ro, perm) {
			visible = append(visible, ro)
		}
	}
	return visible, nil
}

// UpdateMembership overwrites both membership sets with the given values.
// The permission check and the write share a transaction; beyond that there
// is no compare-and-swap, so racing writers resolve last-writer-wins.
func (r *Repository) UpdateMembership(ctx context.Context, id string, userIDs, groupIDs []string, perm acl.Permission) (Role, error) {
	var updated Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ro, err := scanRole(tx.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if perm == "" {
					return shared.ErrNotFound
				}
				return shared.ErrNotAuthorized
			}
			return fmt.Errorf("role: find %s: %w", id, err)
		}
		if perm != "" && !authorized(ctx, ro, perm) {
			return shared.ErrNotAuthorized
		}
		updated, err = scanRole(tx.QueryRow(ctx, `UPDATE roles
			SET assigned_user_ids = $2, assigned_group_ids = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING `+roleColumns, id, emptyIfNil(userIDs), emptyIfNil(groupIDs)))
		if err != nil {
			return fmt.Errorf("role: update membership of %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// UpdateNameDescription updates the two mutable fields of a role.
func (r *Repository) UpdateNameDescription(ctx context.Context, id, name, description string) (Role, error) {
	row := r.pool.QueryRow(ctx, `UPDATE roles
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, name, description)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role name already in use", shared.ErrConflict)
		}
		return Role{}, fmt.Errorf("role: update %s: %w", id, err)
	}
	return updated, nil
}

// UpdatePolicies overwrites the role's policy set.
func (r *Repository) UpdatePolicies(ctx context.Context, id string, policies acl.PolicySet) (Role, error) {
	policiesRaw, err := marshalPolicies(policies)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `UPDATE roles
		SET policies = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, policiesRaw)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("role: update policies of %s: %w", id, err)
	}
	return updated, nil
}

// ArchiveByID removes the role document.
func (r *Repository) ArchiveByID(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("role: archive %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindIDsForUser returns ids of roles the user is assigned to directly or
// through a user group.
func (r *Repository) FindIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id FROM roles r WHERE $1 = ANY(r.assigned_user_ids)
		UNION
		SELECT r.id FROM roles r
		JOIN user_groups g ON g.id = ANY(r.assigned_group_ids)
		WHERE $1 = ANY(g.users)
		ORDER BY 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("role: find for user %s: %w", userID, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("role: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("role: find for user %s: %w", userID, err)
	}
	return ids, nil
}

// CountRolesWithGroup reports how many roles still reference the group.
// The group service refuses deletion while the count is non-zero.
func (r *Repository) CountRolesWithGroup(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE $1 = ANY(assigned_group_ids)`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("role: count references to group %s: %w", groupID, err)
	}
	return count, nil
}

// authorized evaluates a policy-backed permission check against the actor
// in context.
func authorized(ctx context.Context, ro Role, perm acl.Permission) bool {
	actor := shared.ActorFromContext(ctx)
	return actor.HasAnyRole(ro.Policies.GranteeSet(perm))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var ro Role
	var policiesRaw []byte
	var domainType string
	err := row.Scan(&ro.ID, &ro.TenantID, &ro.Name, &ro.Description, &policiesRaw,
		&ro.AssignedUserIDs, &ro.AssignedGroupIDs, &domainType, &ro.DefaultDomainID,
		&ro.IsProvisioned, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	ro.DefaultDomainType = acl.DomainType(domainType)
	if len(policiesRaw) > 0 {
		var policies acl.PolicySet
		if err := json.Unmarshal(policiesRaw, &policies); err != nil {
			return Role{}, fmt.Errorf("decode policies: %w", err)
		}
		ro.Policies = policies
	}
	return ro, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		ro, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("role: scan: %w", err)
		}
		roles = append(roles, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("role: rows: %w", err)
	}
	return roles, nil
}

func marshalPolicies(policies acl.PolicySet) ([]byte, error) {
	if policies == nil {
		policies = acl.PolicySet{}
	}
	raw, err := json.Marshal(policies)
	if err != nil {
		return nil, fmt.Errorf("role: encode policies: %w", err)
	}
	return raw, nil
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
