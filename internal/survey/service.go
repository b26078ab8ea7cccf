package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unipulse/unipulse/internal/audit"
	"github.com/unipulse/unipulse/internal/shared"
)

var (
	// ErrNotFound indicates the survey or response does not exist.
	ErrNotFound = errors.New("survey: not found")
	// ErrSubmissionConflict signals that a concurrent submission raced
	// this one. The caller should ask the user to try again; the engine
	// never retries silently, so a genuine double submission stays
	// visible.
	ErrSubmissionConflict = errors.New("survey: submission conflict, try again")
)

// Repository provides read access to survey configuration and the
// transactional boundary for quota accounting.
type Repository interface {
	GetSurvey(ctx context.Context, id int64) (*Survey, error)
	AccessGroups(ctx context.Context, surveyID int64) ([]AccessGroup, error)
	IsAllowedUser(ctx context.Context, surveyID int64, nationalID string) (bool, error)
	// InTx runs fn inside one serializable transaction. The quota
	// read-then-insert sequence must not interleave with a concurrent
	// submission; a storage-level uniqueness constraint is the final
	// backstop.
	InTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the response operations valid inside the quota
// transaction.
type TxRepository interface {
	CountCompleted(ctx context.Context, surveyID int64, identity, periodKey string) (int, error)
	FindDraft(ctx context.Context, surveyID int64, identity string) (*Response, error)
	InsertResponse(ctx context.Context, r Response) (int64, error)
	GetResponse(ctx context.Context, id int64) (*Response, error)
	MarkCompleted(ctx context.Context, id int64, periodKey string, at time.Time) error
}

// DecisionRecorder appends survey decisions to the audit sink.
type DecisionRecorder interface {
	RecordSurvey(ctx context.Context, entry audit.SurveyEntry) error
}

// Service orchestrates eligibility, quota accounting and response
// lifecycle.
type Service struct {
	repo     Repository
	recorder DecisionRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the survey service.
func NewService(repo Repository, recorder DecisionRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, recorder: recorder, logger: logger, now: time.Now}
}

// Evaluate decides eligibility without touching any response state.
func (s *Service) Evaluate(ctx context.Context, surveyID int64, r Respondent, password string) (Eligibility, error) {
	sv, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return Eligibility{}, err
	}
	eligibility, err := s.evaluate(ctx, sv, r, password)
	if err != nil {
		return Eligibility{}, err
	}
	s.record(ctx, sv.ID, r, audit.EventEvaluate, eligibility.Eligible, eligibility.Reason, "")
	return eligibility, nil
}

// StartOrResume gates a new submission behind the completion quota. The
// whole decision runs inside one serializable transaction: count completed
// responses in the current period, deny when the quota is spent, otherwise
// resume the existing draft or open a fresh one. A draft opened in an
// earlier period is still resumable; it only counts against the quota of
// the period in which it completes.
func (s *Service) StartOrResume(ctx context.Context, surveyID int64, r Respondent, password string) (StartDecision, error) {
	sv, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return StartDecision{}, err
	}
	eligibility, err := s.evaluate(ctx, sv, r, password)
	if err != nil {
		return StartDecision{}, err
	}
	if !eligibility.Eligible {
		s.record(ctx, sv.ID, r, audit.EventStart, false, eligibility.Reason, "")
		return StartDecision{Allowed: false, Reason: eligibility.Reason}, nil
	}

	identity := r.IdentityKey()
	periodKey, ok := PeriodKey(sv.PeriodType, s.now())
	if !ok {
		s.logger.Warn("unknown period type", slog.Int64("survey", sv.ID), slog.String("period_type", string(sv.PeriodType)))
		s.record(ctx, sv.ID, r, audit.EventStart, false, shared.ReasonMisconfigured, "")
		return StartDecision{Allowed: false, Reason: shared.ReasonMisconfigured}, nil
	}
	var decision StartDecision
	err = s.repo.InTx(ctx, func(ctx context.Context, tx TxRepository) error {
		completed, err := tx.CountCompleted(ctx, sv.ID, identity, periodKey)
		if err != nil {
			return err
		}
		if quotaSpent(sv, completed) {
			decision = StartDecision{Allowed: false, Reason: shared.ReasonQuotaExceeded}
			return nil
		}
		draft, err := tx.FindDraft(ctx, sv.ID, identity)
		if err != nil {
			return err
		}
		if draft != nil {
			decision = StartDecision{Allowed: true, ResponseID: draft.ID, Resumed: true}
			return nil
		}
		id, err := tx.InsertResponse(ctx, Response{
			SurveyID:  sv.ID,
			Identity:  identity,
			PeriodKey: periodKey,
			StartedAt: s.now(),
		})
		if err != nil {
			return err
		}
		decision = StartDecision{Allowed: true, ResponseID: id}
		return nil
	})
	if err != nil {
		return StartDecision{}, mapConflict(err)
	}

	event := audit.EventStart
	if decision.Resumed {
		event = audit.EventResume
	}
	s.record(ctx, sv.ID, r, event, decision.Allowed, decision.Reason, periodKey)
	return decision, nil
}

// Complete marks a draft as completed, re-checking the quota inside the
// same transactional guard so two racing completions cannot both land.
func (s *Service) Complete(ctx context.Context, surveyID, responseID int64, r Respondent) (StartDecision, error) {
	sv, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return StartDecision{}, err
	}
	identity := r.IdentityKey()
	completedAt := s.now()
	periodKey, ok := PeriodKey(sv.PeriodType, completedAt)
	if !ok {
		s.logger.Warn("unknown period type", slog.Int64("survey", sv.ID), slog.String("period_type", string(sv.PeriodType)))
		s.record(ctx, sv.ID, r, audit.EventComplete, false, shared.ReasonMisconfigured, "")
		return StartDecision{Allowed: false, Reason: shared.ReasonMisconfigured}, nil
	}
	var decision StartDecision
	err = s.repo.InTx(ctx, func(ctx context.Context, tx TxRepository) error {
		response, err := tx.GetResponse(ctx, responseID)
		if err != nil {
			return err
		}
		if response == nil || response.SurveyID != sv.ID || response.Identity != identity {
			return ErrNotFound
		}
		if response.IsCompleted {
			decision = StartDecision{Allowed: false, Reason: shared.ReasonQuotaExceeded}
			return nil
		}
		completed, err := tx.CountCompleted(ctx, sv.ID, identity, periodKey)
		if err != nil {
			return err
		}
		if quotaSpent(sv, completed) {
			decision = StartDecision{Allowed: false, Reason: shared.ReasonQuotaExceeded}
			return nil
		}
		if err := tx.MarkCompleted(ctx, responseID, periodKey, completedAt); err != nil {
			return err
		}
		decision = StartDecision{Allowed: true, ResponseID: responseID}
		return nil
	})
	if err != nil {
		return StartDecision{}, mapConflict(err)
	}
	s.record(ctx, sv.ID, r, audit.EventComplete, decision.Allowed, decision.Reason, periodKey)
	return decision, nil
}

// DenyMisconfigured records and returns the deny-by-default eligibility
// used when the caller's role data could not be resolved.
func (s *Service) DenyMisconfigured(ctx context.Context, surveyID int64, r Respondent) Eligibility {
	eligibility := Ineligible(shared.ReasonMisconfigured)
	s.record(ctx, surveyID, r, audit.EventEvaluate, false, eligibility.Reason, "")
	return eligibility
}

func (s *Service) evaluate(ctx context.Context, sv *Survey, r Respondent, password string) (Eligibility, error) {
	var (
		groups      []AccessGroup
		whitelisted bool
		err         error
	)
	switch sv.AccessType {
	case AccessUserGroups:
		groups, err = s.repo.AccessGroups(ctx, sv.ID)
		if err != nil {
			return Eligibility{}, err
		}
	case AccessSpecificUsers:
		if !r.Anonymous && r.NationalID != "" {
			whitelisted, err = s.repo.IsAllowedUser(ctx, sv.ID, r.NationalID)
			if err != nil {
				return Eligibility{}, err
			}
		}
	}
	return Evaluate(*sv, r, groups, whitelisted, password, s.now()), nil
}

func (s *Service) record(ctx context.Context, surveyID int64, r Respondent, event string, granted bool, reason shared.Reason, periodKey string) {
	entry := audit.SurveyEntry{
		SurveyID:  surveyID,
		Identity:  r.IdentityKey(),
		Event:     event,
		Granted:   granted,
		Reason:    reason,
		PeriodKey: periodKey,
		At:        s.now(),
	}
	if err := s.recorder.RecordSurvey(ctx, entry); err != nil {
		s.logger.Error("record survey decision",
			slog.Int64("survey", surveyID),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

// quotaSpent treats a non-positive limit as unlimited.
func quotaSpent(sv *Survey, completed int) bool {
	return sv.MaxCompletionsPerUser > 0 && completed >= sv.MaxCompletionsPerUser
}

// mapConflict folds serialization failures and uniqueness violations into
// ErrSubmissionConflict. 40001 is a serializable-isolation conflict, 23505
// the one-draft-per-(survey, identity) partial unique index firing when two
// racing starts both try to open a draft.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrSubmissionConflict, pgErr.Code)
		}
	}
	return err
}
