package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit records in PostgreSQL. Properties are stored
// as jsonb.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one audit record.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	props, err := marshalProperties(rec.Properties)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_records
		(id, event_kind, resource_type, resource_id, actor_user_id, properties, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		uuid.NewString(), rec.EventKind, rec.ResourceType, rec.ResourceID,
		rec.ActorUserID, props, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Timeline returns records matching the filters, newest first. The limit is
// set by the caller; passing pageSize+1 lets the service detect a next page.
func (r *Repository) Timeline(ctx context.Context, f TimelineFilters, limit, offset int) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.From.IsZero() {
		where = append(where, "occurred_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_at <= "+arg(f.To))
	}
	if f.EventKind != "" {
		where = append(where, "event_kind = "+arg(f.EventKind))
	}
	if f.ResourceType != "" {
		where = append(where, "resource_type = "+arg(f.ResourceType))
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id = "+arg(f.ResourceID))
	}
	if f.ActorUserID != "" {
		where = append(where, "actor_user_id = "+arg(f.ActorUserID))
	}
	query := `SELECT id, event_kind, resource_type, resource_id, actor_user_id,
		COALESCE(properties, '{}'), occurred_at FROM audit_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var propsRaw []byte
		if err := rows.Scan(&rec.ID, &rec.EventKind, &rec.ResourceType, &rec.ResourceID,
			&rec.ActorUserID, &propsRaw, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(propsRaw) > 0 {
			if err := json.Unmarshal(propsRaw, &rec.Properties); err != nil {
				return nil, fmt.Errorf("audit: decode properties: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return records, nil
}

func marshalProperties(props map[string]any) ([]byte, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("audit: encode properties: %w", err)
	}
	return raw, nil
}
