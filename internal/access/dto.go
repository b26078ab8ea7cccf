package access

import (
	"time"

	"github.com/unipulse/unipulse/internal/scope"
)

// GrantOverrideRequest is the admin payload for creating or replacing an
// override.
type GrantOverrideRequest struct {
	PrincipalID  int64               `json:"principal_id" validate:"required,gt=0"`
	ResourceID   string              `json:"resource_id" validate:"required"`
	CanAccess    *bool               `json:"can_access" validate:"required"`
	Restrictions map[string][]string `json:"filter_restrictions"`
	DateFrom     *time.Time          `json:"date_from"`
	DateTo       *time.Time          `json:"date_to" validate:"omitempty,gtefield=DateFrom"`
}

func (r GrantOverrideRequest) filter() scope.Filter {
	f := scope.NewFilter()
	for dim, values := range r.Restrictions {
		f.Allowed[scope.Dimension(dim)] = values
	}
	return f.Normalize()
}

// DecisionResponse is the wire form of a Decision.
type DecisionResponse struct {
	ResourceID string         `json:"resource_id"`
	Allowed    bool           `json:"allowed"`
	Reason     string         `json:"reason,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
}

func toDecisionResponse(d Decision) DecisionResponse {
	out := DecisionResponse{
		ResourceID: d.ResourceID,
		Allowed:    d.Allowed,
		Reason:     string(d.Reason),
	}
	if d.Allowed {
		out.Filter = d.Filter.Map()
	}
	return out
}
