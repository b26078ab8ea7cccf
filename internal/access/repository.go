package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unipulse/unipulse/internal/scope"
)

// ErrNotFound indicates a missing override record.
var ErrNotFound = errors.New("access: not found")

// Repository provides PostgreSQL backed persistence for descriptors and
// overrides.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListDescriptors loads the declared resource rules. Called once at
// startup; the registry keeps the result immutable in memory.
func (r *Repository) ListDescriptors(ctx context.Context) ([]ResourceDescriptor, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, min_role, is_public FROM resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("access: list descriptors: %w", err)
	}
	defer rows.Close()

	var descriptors []ResourceDescriptor
	for rows.Next() {
		var d ResourceDescriptor
		var minRole string
		if err := rows.Scan(&d.ID, &d.Name, &minRole, &d.Public); err != nil {
			return nil, err
		}
		d.MinLevel = scope.ParseLevel(minRole)
		descriptors = append(descriptors, d)
	}
	return descriptors, rows.Err()
}

// Override fetches the override for (principal, resource), or nil when none
// exists.
func (r *Repository) Override(ctx context.Context, principalID int64, resourceID string) (*Override, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, principal_id, resource_id, can_access, filter_restrictions, date_from, date_to, granted_by, created_at, updated_at
		 FROM resource_access_overrides
		 WHERE principal_id = $1 AND resource_id = $2`,
		principalID, resourceID)
	override, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("access: load override: %w", err)
	}
	return override, nil
}

// ListOverrides returns all overrides granted to a principal.
func (r *Repository) ListOverrides(ctx context.Context, principalID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, principal_id, resource_id, can_access, filter_restrictions, date_from, date_to, granted_by, created_at, updated_at
		 FROM resource_access_overrides
		 WHERE principal_id = $1 ORDER BY resource_id`,
		principalID)
	if err != nil {
		return nil, fmt.Errorf("access: list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *override)
	}
	return overrides, rows.Err()
}

// UpsertOverride creates or replaces an override.
func (r *Repository) UpsertOverride(ctx context.Context, o Override) (Override, error) {
	restrictions, err := marshalRestrictions(o.Restrictions)
	if err != nil {
		return Override{}, err
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO resource_access_overrides
		   (principal_id, resource_id, can_access, filter_restrictions, date_from, date_to, granted_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 ON CONFLICT (principal_id, resource_id) DO UPDATE SET
		   can_access = EXCLUDED.can_access,
		   filter_restrictions = EXCLUDED.filter_restrictions,
		   date_from = EXCLUDED.date_from,
		   date_to = EXCLUDED.date_to,
		   granted_by = EXCLUDED.granted_by,
		   updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		o.PrincipalID, o.ResourceID, o.CanAccess, restrictions, o.DateFrom, o.DateTo, o.GrantedBy)
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Override{}, fmt.Errorf("access: upsert override: %w", err)
	}
	return o, nil
}

// DeleteOverride removes an override. Returns ErrNotFound when nothing was
// deleted.
func (r *Repository) DeleteOverride(ctx context.Context, principalID int64, resourceID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM resource_access_overrides WHERE principal_id = $1 AND resource_id = $2`,
		principalID, resourceID)
	if err != nil {
		return fmt.Errorf("access: delete override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOverride(row pgx.Row) (*Override, error) {
	var (
		o            Override
		restrictions []byte
	)
	if err := row.Scan(&o.ID, &o.PrincipalID, &o.ResourceID, &o.CanAccess, &restrictions,
		&o.DateFrom, &o.DateTo, &o.GrantedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	filter, err := unmarshalRestrictions(restrictions)
	if err != nil {
		return nil, err
	}
	o.Restrictions = filter
	return &o, nil
}

func marshalRestrictions(f scope.Filter) ([]byte, error) {
	out := make(map[string][]string, len(f.Allowed))
	for dim, values := range f.Allowed {
		out[string(dim)] = values
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("access: marshal restrictions: %w", err)
	}
	return data, nil
}

func unmarshalRestrictions(data []byte) (scope.Filter, error) {
	filter := scope.NewFilter()
	if len(data) == 0 {
		return filter, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return scope.Filter{}, fmt.Errorf("access: unmarshal restrictions: %w", err)
	}
	for dim, values := range raw {
		filter.Allowed[scope.Dimension(dim)] = values
	}
	return filter.Normalize(), nil
}
