package survey

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// Evaluate is the state-free eligibility decision. The caller supplies
// whatever policy data the survey's access type needs: access groups for
// user_groups, the whitelist verdict for specific_users, the submitted
// password for gated anonymous surveys. No branch grants on ambiguous
// input.
func Evaluate(s Survey, r Respondent, groups []AccessGroup, whitelisted bool, password string, now time.Time) Eligibility {
	if s.Status != StatusActive {
		return Ineligible(shared.ReasonClosed)
	}
	if s.StartAt != nil && now.Before(*s.StartAt) {
		return Ineligible(shared.ReasonClosed)
	}
	if s.EndAt != nil && now.After(*s.EndAt) {
		return Ineligible(shared.ReasonClosed)
	}

	switch s.AccessType {
	case AccessPublic:
		// Open to every authenticated principal; anonymous visitors have
		// no identity to count quotas against.
		if r.Anonymous || r.NationalID == "" {
			return Ineligible(shared.ReasonNotWhitelisted)
		}
		return Eligible()

	case AccessAnonymous:
		if s.AnonymousPasswordHash == "" {
			return Eligible()
		}
		if password == "" {
			return Ineligible(shared.ReasonPasswordRequired)
		}
		// bcrypt comparison is not timing-sensitive on the password input.
		if err := bcrypt.CompareHashAndPassword([]byte(s.AnonymousPasswordHash), []byte(password)); err != nil {
			return Ineligible(shared.ReasonPasswordRequired)
		}
		return Eligible()

	case AccessSpecificUsers:
		if r.Anonymous || r.NationalID == "" || !whitelisted {
			return Ineligible(shared.ReasonNotWhitelisted)
		}
		return Eligible()

	case AccessUserGroups:
		if r.Anonymous {
			return Ineligible(shared.ReasonGroupMismatch)
		}
		for _, assignment := range r.Roles {
			for _, group := range groups {
				if matchesGroup(assignment, group) {
					return Eligible()
				}
			}
		}
		return Ineligible(shared.ReasonGroupMismatch)

	default:
		// Unknown access type: deny rather than guess.
		return Ineligible(shared.ReasonMisconfigured)
	}
}

// matchesGroup reports whether one role assignment satisfies one access
// group. The role names must match exactly. Each code dimension constrains
// only when the group lists values for it: an empty set here is a wildcard
// on that dimension, not a lockout. (The scope filter algebra uses the
// opposite convention.)
func matchesGroup(a scope.RoleAssignment, g AccessGroup) bool {
	if a.Role != g.Role {
		return false
	}
	if !codeAllowed(a.ProvinceCode, g.ProvinceCodes) {
		return false
	}
	if !codeAllowed(a.UniversityCode, g.UniversityCodes) {
		return false
	}
	if !codeAllowed(a.FacultyCode, g.FacultyCodes) {
		return false
	}
	return true
}

// codeAllowed applies the wildcard rule: no listed codes means no
// restriction; otherwise the assignment's code must be present.
func codeAllowed(code string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if code == "" {
		return false
	}
	for _, v := range allowed {
		if v == code {
			return true
		}
	}
	return false
}
