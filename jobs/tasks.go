package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes decision log rows past the retention
	// horizon.
	TaskAuditRetention = "audit:retention"
	// TaskSurveySweep deactivates surveys whose end date has passed.
	TaskSurveySweep = "survey:sweep"
)

// AuditRetentionPayload carries the retention horizon for one prune run.
type AuditRetentionPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditRetentionTask constructs an audit retention task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewSurveySweepTask constructs a survey sweep task.
func NewSurveySweepTask() *asynq.Task {
	return asynq.NewTask(TaskSurveySweep, nil)
}

// Tasks bundles the storage-backed task handlers.
type Tasks struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTasks builds the task handler set.
func NewTasks(pool *pgxpool.Pool, logger *slog.Logger) *Tasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks{pool: pool, logger: logger}
}

// HandleAuditRetention deletes log rows older than the retention horizon.
// The decision log is append only for the application; only this job may
// remove rows, and only by age.
func (t *Tasks) HandleAuditRetention(ctx context.Context, task *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().UTC().Add(-payload.Retention)

	accessTag, err := t.pool.Exec(ctx, `DELETE FROM access_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return err
	}
	surveyTag, err := t.pool.Exec(ctx, `DELETE FROM survey_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return err
	}
	t.logger.Info("audit retention pruned",
		slog.Time("cutoff", cutoff),
		slog.Int64("access_rows", accessTag.RowsAffected()),
		slog.Int64("survey_rows", surveyTag.RowsAffected()),
	)
	return nil
}

// HandleSurveySweep marks surveys whose window has closed as inactive so
// listings stop offering them. Eligibility already denies past-end surveys;
// the sweep keeps the stored status in line with reality.
func (t *Tasks) HandleSurveySweep(ctx context.Context, task *asynq.Task) error {
	tag, err := t.pool.Exec(ctx, `
		UPDATE surveys
		SET status = 'inactive', updated_at = NOW()
		WHERE status = 'active' AND end_at IS NOT NULL AND end_at < NOW()`)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		t.logger.Info("survey sweep deactivated", slog.Int64("rows", tag.RowsAffected()))
	}
	return nil
}
