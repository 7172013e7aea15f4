package group

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/shared"
)

const groupColumns = `id, tenant_id, name, description, is_provisioned,
	COALESCE(users, '{}'), created_at, updated_at`

// Repository provides PostgreSQL backed persistence for user groups. Members
// are stored as a text array on the group row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts a new group and assigns its id.
func (r *Repository) Save(ctx context.Context, g UserGroup) (UserGroup, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO user_groups
		(id, tenant_id, name, description, is_provisioned, users, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+groupColumns,
		uuid.NewString(), g.TenantID, g.Name, g.Description, g.IsProvisioned, emptyIfNil(g.Users))
	saved, err := scanGroup(row)
	if err != nil {
		if isUniqueViolation(err) {
			return UserGroup{}, fmt.Errorf("%w: group name already in use", shared.ErrConflict)
		}
		return UserGroup{}, fmt.Errorf("group: save: %w", err)
	}
	return saved, nil
}

// FindByID loads a single group.
func (r *Repository) FindByID(ctx context.Context, id string) (UserGroup, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM user_groups WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserGroup{}, shared.ErrNotFound
		}
		return UserGroup{}, fmt.Errorf("group: find %s: %w", id, err)
	}
	return g, nil
}

// FindAllByID loads the existing groups among ids. Missing ids are skipped.
func (r *Repository) FindAllByID(ctx context.Context, ids []string) ([]UserGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM user_groups WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("group: find all by id: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

// FindAll returns every group ordered by name.
func (r *Repository) FindAll(ctx context.Context) ([]UserGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM user_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("group: find all: %w", err)
	}
	defer rows.Close()
	return collectGroups(rows)
}

// UpdateNameDescription updates the two mutable descriptive fields.
func (r *Repository) UpdateNameDescription(ctx context.Context, id, name, description string) (UserGroup, error) {
	row := r.pool.QueryRow(ctx, `UPDATE user_groups
		SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+groupColumns, id, name, description)
	updated, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserGroup{}, shared.ErrNotFound
		}
		if isUniqueViolation(err) {
			return UserGroup{}, fmt.Errorf("%w: group name already in use", shared.ErrConflict)
		}
		return UserGroup{}, fmt.Errorf("group: update %s: %w", id, err)
	}
	return updated, nil
}

// UpdateUsers overwrites the member set. Last writer wins, same as role
// membership writes.
func (r *Repository) UpdateUsers(ctx context.Context, id string, users []string) (UserGroup, error) {
	row := r.pool.QueryRow(ctx, `UPDATE user_groups
		SET users = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+groupColumns, id, emptyIfNil(users))
	updated, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserGroup{}, shared.ErrNotFound
		}
		return UserGroup{}, fmt.Errorf("group: update users of %s: %w", id, err)
	}
	return updated, nil
}

// DeleteByID removes the group row.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("group: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (UserGroup, error) {
	var g UserGroup
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.Description, &g.IsProvisioned,
		&g.Users, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return UserGroup{}, err
	}
	return g, nil
}

func collectGroups(rows pgx.Rows) ([]UserGroup, error) {
	var groups []UserGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("group: scan: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group: rows: %w", err)
	}
	return groups, nil
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
