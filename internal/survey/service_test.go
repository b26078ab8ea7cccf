package survey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unipulse/unipulse/internal/audit"
	"github.com/unipulse/unipulse/internal/shared"
)

// mockRepo keeps everything in maps and serializes InTx with a mutex, which
// stands in for serializable isolation. txFailures injects storage errors
// into the first N transactions.
type mockRepo struct {
	mu         sync.Mutex
	surveys    map[int64]*Survey
	groups     map[int64][]AccessGroup
	allowed    map[int64]map[string]bool
	responses  map[int64]*Response
	nextID     int64
	txFailures []error
}

func newMockRepo(surveys ...*Survey) *mockRepo {
	m := &mockRepo{
		surveys:   map[int64]*Survey{},
		groups:    map[int64][]AccessGroup{},
		allowed:   map[int64]map[string]bool{},
		responses: map[int64]*Response{},
	}
	for _, sv := range surveys {
		m.surveys[sv.ID] = sv
	}
	return m
}

func (m *mockRepo) GetSurvey(_ context.Context, id int64) (*Survey, error) {
	sv, ok := m.surveys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sv, nil
}

func (m *mockRepo) AccessGroups(_ context.Context, surveyID int64) ([]AccessGroup, error) {
	return m.groups[surveyID], nil
}

func (m *mockRepo) IsAllowedUser(_ context.Context, surveyID int64, nationalID string) (bool, error) {
	return m.allowed[surveyID][nationalID], nil
}

func (m *mockRepo) InTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txFailures) > 0 {
		err := m.txFailures[0]
		m.txFailures = m.txFailures[1:]
		return err
	}
	return fn(ctx, (*mockTx)(m))
}

type mockTx mockRepo

func (t *mockTx) CountCompleted(_ context.Context, surveyID int64, identity, periodKey string) (int, error) {
	n := 0
	for _, r := range t.responses {
		if r.SurveyID == surveyID && r.Identity == identity && r.IsCompleted && r.PeriodKey == periodKey {
			n++
		}
	}
	return n, nil
}

func (t *mockTx) FindDraft(_ context.Context, surveyID int64, identity string) (*Response, error) {
	for _, r := range t.responses {
		if r.SurveyID == surveyID && r.Identity == identity && !r.IsCompleted {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (t *mockTx) InsertResponse(_ context.Context, r Response) (int64, error) {
	t.nextID++
	r.ID = t.nextID
	t.responses[r.ID] = &r
	return r.ID, nil
}

func (t *mockTx) GetResponse(_ context.Context, id int64) (*Response, error) {
	r, ok := t.responses[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (t *mockTx) MarkCompleted(_ context.Context, id int64, periodKey string, at time.Time) error {
	r, ok := t.responses[id]
	if !ok || r.IsCompleted {
		return ErrNotFound
	}
	r.IsCompleted = true
	r.PeriodKey = periodKey
	r.CompletedAt = &at
	return nil
}

type surveyRecorder struct {
	mu      sync.Mutex
	entries []audit.SurveyEntry
	err     error
}

func (c *surveyRecorder) RecordSurvey(_ context.Context, entry audit.SurveyEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, entry)
	return nil
}

func newTestService(repo *mockRepo, rec *surveyRecorder, at time.Time) *Service {
	s := NewService(repo, rec, nil)
	s.now = func() time.Time { return at }
	return s
}

func TestStartOrResumeFreshDraft(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	got, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	require.NoError(t, err)
	assert.True(t, got.Allowed)
	assert.False(t, got.Resumed)
	assert.NotZero(t, got.ResponseID)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.EventStart, rec.entries[0].Event)
	assert.Equal(t, "2025-08", rec.entries[0].PeriodKey)
}

func TestStartOrResumeResumesExistingDraft(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)
	r := authedRespondent()

	first, err := svc.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	second, err := svc.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.ResponseID, second.ResponseID)
	assert.Len(t, repo.responses, 1)
}

func TestStartOrResumeDraftSurvivesPeriodBoundary(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	r := authedRespondent()

	march := time.Date(2025, 3, 28, 9, 0, 0, 0, time.UTC)
	opened, err := newTestService(repo, rec, march).StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)

	april := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, rec, april)
	resumed, err := svc.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, opened.ResponseID, resumed.ResponseID)

	// Completion counts against the period it lands in, not the one the
	// draft was opened in.
	done, err := svc.Complete(context.Background(), 1, resumed.ResponseID, r)
	require.NoError(t, err)
	assert.True(t, done.Allowed)
	assert.Equal(t, "2025-04", repo.responses[resumed.ResponseID].PeriodKey)
}

func TestQuotaResetsAcrossYears(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodYearly})
	rec := &surveyRecorder{}
	r := authedRespondent()

	dec := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)
	svc24 := newTestService(repo, rec, dec)
	start, err := svc24.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	done, err := svc24.Complete(context.Background(), 1, start.ResponseID, r)
	require.NoError(t, err)
	require.True(t, done.Allowed)

	blocked, err := svc24.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)
	assert.Equal(t, shared.ReasonQuotaExceeded, blocked.Reason)

	jan := time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)
	again, err := newTestService(repo, rec, jan).StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestStartOrResumeUnknownPeriodTypeMisconfigured(t *testing.T) {
	// A period type outside the declared enum must never fall into a
	// default bucket; the survey is denied as misconfigured.
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodType("weekly")})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	got, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, shared.ReasonMisconfigured, got.Reason)
	assert.Empty(t, repo.responses, "no draft may be opened for a misconfigured survey")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.EventStart, rec.entries[0].Event)
	assert.False(t, rec.entries[0].Granted)
	assert.Equal(t, shared.ReasonMisconfigured, rec.entries[0].Reason)
}

func TestStartOrResumeDeniedIneligible(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessSpecificUsers, Status: StatusActive, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	got, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.Equal(t, shared.ReasonNotWhitelisted, got.Reason)
	assert.Empty(t, repo.responses)

	require.Len(t, rec.entries, 1)
	assert.False(t, rec.entries[0].Granted)
}

func TestCompleteChecksOwnership(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 3, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	start, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	require.NoError(t, err)

	other := Respondent{NationalID: "9999999999"}
	_, err = svc.Complete(context.Background(), 1, start.ResponseID, other)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, repo.responses[start.ResponseID].IsCompleted)
}

func TestCompleteTwiceDenied(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 5, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)
	r := authedRespondent()

	start, err := svc.StartOrResume(context.Background(), 1, r, "")
	require.NoError(t, err)
	first, err := svc.Complete(context.Background(), 1, start.ResponseID, r)
	require.NoError(t, err)
	require.True(t, first.Allowed)

	second, err := svc.Complete(context.Background(), 1, start.ResponseID, r)
	require.NoError(t, err)
	assert.False(t, second.Allowed)
	assert.Equal(t, shared.ReasonQuotaExceeded, second.Reason)
}

func TestUnlimitedQuota(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 0, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)
	r := authedRespondent()

	for i := 0; i < 4; i++ {
		start, err := svc.StartOrResume(context.Background(), 1, r, "")
		require.NoError(t, err)
		require.True(t, start.Allowed)
		done, err := svc.Complete(context.Background(), 1, start.ResponseID, r)
		require.NoError(t, err)
		require.True(t, done.Allowed)
	}
}

func TestConflictMapping(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	unique := &pgconn.PgError{Code: "23505"}
	unrelated := errors.New("pipe broke")

	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	repo.txFailures = []error{serialization}
	_, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	assert.ErrorIs(t, err, ErrSubmissionConflict)

	repo.txFailures = []error{unique}
	_, err = svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	assert.ErrorIs(t, err, ErrSubmissionConflict)

	repo.txFailures = []error{unrelated}
	_, err = svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	assert.ErrorIs(t, err, unrelated)
	assert.NotErrorIs(t, err, ErrSubmissionConflict)
}

func TestConcurrentCompletionsRespectQuota(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessAnonymous, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodYearly})
	rec := &surveyRecorder{}
	svc := newTestService(repo, rec, evalNow)

	// Distinct drafts for the same person, completed concurrently. The
	// transactional guard must let exactly one through.
	r := Respondent{Anonymous: true, AnonToken: "tok-1"}
	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := (*mockTx)(repo).InsertResponse(context.Background(), Response{
			SurveyID:  1,
			Identity:  r.IdentityKey(),
			PeriodKey: "2025",
			StartedAt: evalNow,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	results := make([]StartDecision, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			dec, err := svc.Complete(context.Background(), 1, id, r)
			if err == nil {
				results[i] = dec
			}
		}(i, id)
	}
	wg.Wait()

	allowed := 0
	for _, dec := range results {
		if dec.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestAuditFailureDoesNotBlockDecision(t *testing.T) {
	repo := newMockRepo(&Survey{ID: 1, AccessType: AccessPublic, Status: StatusActive, MaxCompletionsPerUser: 1, PeriodType: PeriodMonthly})
	rec := &surveyRecorder{err: errors.New("sink down")}
	svc := newTestService(repo, rec, evalNow)

	got, err := svc.StartOrResume(context.Background(), 1, authedRespondent(), "")
	require.NoError(t, err)
	assert.True(t, got.Allowed)
}

func TestEvaluateUnknownSurvey(t *testing.T) {
	svc := newTestService(newMockRepo(), &surveyRecorder{}, evalNow)
	_, err := svc.Evaluate(context.Background(), 404, authedRespondent(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
