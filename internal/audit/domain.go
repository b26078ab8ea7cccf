package audit

import (
	"time"

	"github.com/unipulse/unipulse/internal/shared"
)

// Survey decision events.
const (
	EventEvaluate = "evaluate"
	EventStart    = "start"
	EventResume   = "resume"
	EventComplete = "complete"
)

// AccessEntry captures one resource access decision. Entries are append
// only: the engine writes them and never updates or deletes them.
type AccessEntry struct {
	PrincipalID int64
	ResourceID  string
	Granted     bool
	Reason      shared.Reason
	// Filters is the resolved row filter attached to a grant, logged for
	// traceability. Filters are not secrets.
	Filters map[string]any
	At      time.Time
}

// SurveyEntry captures one survey eligibility or quota decision.
type SurveyEntry struct {
	SurveyID  int64
	Identity  string
	Event     string
	Granted   bool
	Reason    shared.Reason
	PeriodKey string
	At        time.Time
}

// TimelineRow is a flattened log row for the admin timeline.
type TimelineRow struct {
	At        time.Time
	Kind      string // "access" or "survey"
	Principal string
	Subject   string // resource id or survey id
	Granted   bool
	Reason    string
	Event     string
}

// TimelineFilters narrow a timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Subject  string
	Granted  *bool
	Page     int
	PageSize int
}

// PagingInfo describes the returned page.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}
