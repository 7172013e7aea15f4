package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/shared"
)

// Repository provides PostgreSQL backed tenant lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DefaultTenant returns the installation's default tenant with its policies.
func (r *Repository) DefaultTenant(ctx context.Context) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, display_name, policies, created_at, updated_at FROM tenants WHERE is_default ORDER BY created_at LIMIT 1`)
	return scanTenant(row)
}

// FindByID loads a tenant by id.
func (r *Repository) FindByID(ctx context.Context, id string) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, display_name, policies, created_at, updated_at FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	var policiesRaw []byte
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &policiesRaw, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: scan: %w", err)
	}
	if len(policiesRaw) > 0 {
		var policies acl.PolicySet
		if err := json.Unmarshal(policiesRaw, &policies); err != nil {
			return Tenant{}, fmt.Errorf("tenant: decode policies: %w", err)
		}
		t.Policies = policies
	}
	return t, nil
}
