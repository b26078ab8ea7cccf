package access

import (
	"time"

	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// ResourceDescriptor declares the visibility rule for one dashboard or data
// slice. Descriptors are loaded once at startup and immutable afterwards.
type ResourceDescriptor struct {
	ID       string
	Name     string
	MinLevel scope.AccessLevel
	Public   bool
}

// Override is an administrator-granted, per-principal-per-resource
// exception. It can narrow base access or revoke it outright; it can never
// widen, because its restrictions are intersected with the role scope.
type Override struct {
	ID           int64
	PrincipalID  int64
	ResourceID   string
	CanAccess    bool
	Restrictions scope.Filter
	DateFrom     *time.Time
	DateTo       *time.Time
	GrantedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Decision is the tagged outcome of an access check.
type Decision struct {
	ResourceID string
	Allowed    bool
	Reason     shared.Reason
	Filter     scope.Filter
}

// Allow builds a granting decision carrying the effective row filter.
func Allow(resourceID string, filter scope.Filter) Decision {
	return Decision{ResourceID: resourceID, Allowed: true, Filter: filter}
}

// Deny builds a denying decision with a machine-readable reason.
func Deny(resourceID string, reason shared.Reason) Decision {
	return Decision{ResourceID: resourceID, Allowed: false, Reason: reason}
}
