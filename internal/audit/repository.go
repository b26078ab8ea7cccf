package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WindowParams narrows a log window query.
type WindowParams struct {
	From    *time.Time
	To      *time.Time
	Subject string
	Granted *bool
	Offset  int
	Limit   int
}

// Repository reads back audit rows for the admin timeline.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccessWindow returns access log rows, newest first.
func (r *Repository) AccessWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT occurred_at, principal_id::text, resource_id, granted, reason
		 FROM access_logs
		 WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		   AND ($2::timestamptz IS NULL OR occurred_at <= $2)
		   AND ($3::text = '' OR resource_id = $3)
		   AND ($4::boolean IS NULL OR granted = $4)
		 ORDER BY occurred_at DESC
		 OFFSET $5 LIMIT $6`,
		params.From, params.To, params.Subject, params.Granted, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: access window: %w", err)
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		row := TimelineRow{Kind: "access"}
		if err := rows.Scan(&row.At, &row.Principal, &row.Subject, &row.Granted, &row.Reason); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SurveyWindow returns survey log rows, newest first.
func (r *Repository) SurveyWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT occurred_at, identity, survey_id::text, granted, reason, event
		 FROM survey_logs
		 WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		   AND ($2::timestamptz IS NULL OR occurred_at <= $2)
		   AND ($3::text = '' OR survey_id::text = $3)
		   AND ($4::boolean IS NULL OR granted = $4)
		 ORDER BY occurred_at DESC
		 OFFSET $5 LIMIT $6`,
		params.From, params.To, params.Subject, params.Granted, params.Offset, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: survey window: %w", err)
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		row := TimelineRow{Kind: "survey"}
		if err := rows.Scan(&row.At, &row.Principal, &row.Subject, &row.Granted, &row.Reason, &row.Event); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
