package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPrincipalNotFound indicates the principal has no identity record.
var ErrPrincipalNotFound = errors.New("scope: principal not found")

// Record is the raw identity record supplied by the identity source.
type Record struct {
	UserID      int64
	NationalID  string
	Assignments []RoleAssignment
}

// Source supplies the identity record for a principal. Authentication
// happens upstream; this engine only consumes its output.
type Source interface {
	PrincipalRecord(ctx context.Context, userID int64) (Record, error)
}

// Repository reads identity records from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PrincipalRecord loads the national identifier and role assignments for a
// user.
func (r *Repository) PrincipalRecord(ctx context.Context, userID int64) (Record, error) {
	record := Record{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(national_id, '') FROM users WHERE id = $1`,
		userID,
	).Scan(&record.NationalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrPrincipalNotFound
		}
		return Record{}, fmt.Errorf("scope: load principal %d: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role, COALESCE(province_code, ''), COALESCE(university_code, ''), COALESCE(faculty_code, '')
		 FROM role_assignments WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scope: load assignments %d: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.Role, &a.ProvinceCode, &a.UniversityCode, &a.FacultyCode); err != nil {
			return Record{}, err
		}
		record.Assignments = append(record.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return Record{}, err
	}
	return record, nil
}
