package survey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unipulse/unipulse/internal/platform/db"
)

// PGRepository provides PostgreSQL backed persistence for surveys and
// responses.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetSurvey fetches a survey by ID.
func (r *PGRepository) GetSurvey(ctx context.Context, id int64) (*Survey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, access_type, status, start_at, end_at,
		        max_completions_per_user, period_type, COALESCE(anonymous_password_hash, ''),
		        created_at, updated_at
		 FROM surveys WHERE id = $1`, id)
	var s Survey
	err := row.Scan(&s.ID, &s.Title, &s.AccessType, &s.Status, &s.StartAt, &s.EndAt,
		&s.MaxCompletionsPerUser, &s.PeriodType, &s.AnonymousPasswordHash,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("survey: get %d: %w", id, err)
	}
	return &s, nil
}

// AccessGroups returns the user_groups policy rows for a survey.
func (r *PGRepository) AccessGroups(ctx context.Context, surveyID int64) ([]AccessGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT survey_id, role, province_codes, university_codes, faculty_codes
		 FROM survey_access_groups WHERE survey_id = $1`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey: access groups %d: %w", surveyID, err)
	}
	defer rows.Close()

	var groups []AccessGroup
	for rows.Next() {
		var g AccessGroup
		if err := rows.Scan(&g.SurveyID, &g.Role, &g.ProvinceCodes, &g.UniversityCodes, &g.FacultyCodes); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// IsAllowedUser checks the specific_users whitelist.
func (r *PGRepository) IsAllowedUser(ctx context.Context, surveyID int64, nationalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM survey_allowed_users WHERE survey_id = $1 AND national_id = $2)`,
		surveyID, nationalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("survey: whitelist %d: %w", surveyID, err)
	}
	return exists, nil
}

// InTx wraps fn in a serializable transaction.
func (r *PGRepository) InTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) CountCompleted(ctx context.Context, surveyID int64, identity, periodKey string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM survey_responses
		 WHERE survey_id = $1 AND identity = $2 AND period_key = $3 AND is_completed`,
		surveyID, identity, periodKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("survey: count completed: %w", err)
	}
	return count, nil
}

func (t *txRepo) FindDraft(ctx context.Context, surveyID int64, identity string) (*Response, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, survey_id, identity, is_completed, period_key, started_at, completed_at
		 FROM survey_responses
		 WHERE survey_id = $1 AND identity = $2 AND NOT is_completed`,
		surveyID, identity)
	response, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("survey: find draft: %w", err)
	}
	return response, nil
}

func (t *txRepo) InsertResponse(ctx context.Context, r Response) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO survey_responses (survey_id, identity, is_completed, period_key, started_at)
		 VALUES ($1, $2, FALSE, $3, $4)
		 RETURNING id`,
		r.SurveyID, r.Identity, r.PeriodKey, r.StartedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("survey: insert response: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetResponse(ctx context.Context, id int64) (*Response, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, survey_id, identity, is_completed, period_key, started_at, completed_at
		 FROM survey_responses WHERE id = $1`, id)
	response, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("survey: get response %d: %w", id, err)
	}
	return response, nil
}

func (t *txRepo) MarkCompleted(ctx context.Context, id int64, periodKey string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE survey_responses
		 SET is_completed = TRUE, period_key = $2, completed_at = $3
		 WHERE id = $1 AND NOT is_completed`,
		id, periodKey, at)
	if err != nil {
		return fmt.Errorf("survey: mark completed %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanResponse(row pgx.Row) (*Response, error) {
	var r Response
	if err := row.Scan(&r.ID, &r.SurveyID, &r.Identity, &r.IsCompleted, &r.PeriodKey,
		&r.StartedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
