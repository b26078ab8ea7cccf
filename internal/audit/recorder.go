package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder appends decision records to the access_logs and survey_logs
// tables. Rows are immutable once written; retention cleanup lives in the
// jobs package, outside the engine.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// RecordAccess persists one resource access decision.
func (r *Recorder) RecordAccess(ctx context.Context, entry AccessEntry) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if entry.ResourceID == "" {
		return errors.New("audit access entry requires resource id")
	}
	filters, err := json.Marshal(entry.Filters)
	if err != nil {
		return fmt.Errorf("audit: marshal filters: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO access_logs (principal_id, resource_id, granted, reason, filters, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		entry.PrincipalID, entry.ResourceID, entry.Granted, string(entry.Reason), filters, nullableTime(entry.At))
	return err
}

// RecordSurvey persists one survey eligibility or quota decision.
func (r *Recorder) RecordSurvey(ctx context.Context, entry SurveyEntry) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if entry.SurveyID == 0 || entry.Event == "" {
		return errors.New("audit survey entry requires survey id and event")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO survey_logs (survey_id, identity, event, granted, reason, period_key, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		entry.SurveyID, entry.Identity, entry.Event, entry.Granted, string(entry.Reason), entry.PeriodKey, nullableTime(entry.At))
	return err
}

// nullableTime maps the zero time to SQL NULL so the database fills in the
// insert timestamp.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
