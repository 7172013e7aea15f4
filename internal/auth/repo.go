package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindCredential(ctx context.Context, keyID string) (*Credential, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindCredential fetches an API credential by key id.
func (r *PGRepository) FindCredential(ctx context.Context, keyID string) (*Credential, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, name, secret_hash, is_active, created_at, updated_at
		FROM api_credentials WHERE id = $1`, keyID)
	var c Credential
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.SecretHash, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find credential %s: %w", keyID, err)
	}
	return &c, nil
}

var _ Repository = (*PGRepository)(nil)
