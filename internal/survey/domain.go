package survey

import (
	"time"

	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// AccessType enumerates who may answer a survey.
type AccessType string

const (
	AccessPublic        AccessType = "public"
	AccessUserGroups    AccessType = "user_groups"
	AccessSpecificUsers AccessType = "specific_users"
	AccessAnonymous     AccessType = "anonymous"
)

// PeriodType enumerates the quota reset cadence.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodSemester  PeriodType = "semester"
	PeriodYearly    PeriodType = "yearly"
)

// Status enumerates the survey lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Survey is a published questionnaire with its access policy and quota
// configuration.
type Survey struct {
	ID                    int64
	Title                 string
	AccessType            AccessType
	Status                Status
	StartAt               *time.Time
	EndAt                 *time.Time
	MaxCompletionsPerUser int
	PeriodType            PeriodType
	// AnonymousPasswordHash is a bcrypt hash; empty means the anonymous
	// survey is open without a password.
	AnonymousPasswordHash string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AccessGroup allows a role, optionally pinned to org code sets, onto a
// user_groups survey. An empty code set on a dimension means no restriction
// on that dimension (wildcard). This is deliberately the opposite of the
// scope filter algebra, where an empty set means nothing is visible; the
// two conventions must never be mixed up.
type AccessGroup struct {
	SurveyID        int64
	Role            string
	ProvinceCodes   []string
	UniversityCodes []string
	FacultyCodes    []string
}

// AllowedUser whitelists a national identifier on a specific_users survey.
type AllowedUser struct {
	SurveyID   int64
	NationalID string
}

// Response is one (possibly in-progress) answer sheet. At most one draft
// may exist per (survey, identity); completed rows are capped per period by
// the quota engine.
type Response struct {
	ID          int64
	SurveyID    int64
	Identity    string
	IsCompleted bool
	PeriodKey   string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Respondent identifies who is answering: an authenticated principal with
// their raw role assignments, or an anonymous visitor with a stable token.
type Respondent struct {
	NationalID string
	Roles      []scope.RoleAssignment
	Anonymous  bool
	AnonToken  string
}

// IdentityKey is the storage identity used for quota accounting.
func (r Respondent) IdentityKey() string {
	if r.Anonymous {
		return "anon:" + r.AnonToken
	}
	return r.NationalID
}

// Eligibility is the tagged outcome of the access evaluation.
type Eligibility struct {
	Eligible bool
	Reason   shared.Reason
}

// Eligible is the granting eligibility value.
func Eligible() Eligibility {
	return Eligibility{Eligible: true}
}

// Ineligible builds a denial with a machine-readable reason.
func Ineligible(reason shared.Reason) Eligibility {
	return Eligibility{Eligible: false, Reason: reason}
}

// StartDecision is the outcome of a start-or-resume request.
type StartDecision struct {
	Allowed    bool
	Reason     shared.Reason
	ResponseID int64
	Resumed    bool
}
