package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source loads the raw hierarchy rows.
type Source interface {
	Provinces(ctx context.Context) ([]Province, error)
	Universities(ctx context.Context) ([]University, error)
	Faculties(ctx context.Context) ([]Faculty, error)
}

// Repository reads the organisational hierarchy from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a directory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Provinces(ctx context.Context) ([]Province, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name FROM provinces`)
	if err != nil {
		return nil, fmt.Errorf("directory: list provinces: %w", err)
	}
	defer rows.Close()

	var out []Province
	for rows.Next() {
		var p Province
		if err := rows.Scan(&p.Code, &p.Name); err != nil {
			return nil, fmt.Errorf("directory: scan province: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) Universities(ctx context.Context) ([]University, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, province_code, name FROM universities`)
	if err != nil {
		return nil, fmt.Errorf("directory: list universities: %w", err)
	}
	defer rows.Close()

	var out []University
	for rows.Next() {
		var u University
		if err := rows.Scan(&u.Code, &u.ProvinceCode, &u.Name); err != nil {
			return nil, fmt.Errorf("directory: scan university: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) Faculties(ctx context.Context) ([]Faculty, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, university_code, name FROM faculties`)
	if err != nil {
		return nil, fmt.Errorf("directory: list faculties: %w", err)
	}
	defer rows.Close()

	var out []Faculty
	for rows.Next() {
		var f Faculty
		if err := rows.Scan(&f.Code, &f.UniversityCode, &f.Name); err != nil {
			return nil, fmt.Errorf("directory: scan faculty: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
