package scope

import "strings"

// AccessLevel ranks roles from narrowest to widest default visibility.
type AccessLevel int

const (
	LevelNone AccessLevel = iota
	LevelFaculty
	LevelProvinceUniversity
	LevelCentralOrg
	LevelAdmin
)

// Role names as stored in role_assignments.
const (
	RoleAdmin              = "admin"
	RoleCentralOrg         = "central_org"
	RoleProvinceUniversity = "province_university"
	RoleFaculty            = "faculty"
)

// ParseLevel maps a role name onto its access level. Unknown names map to
// LevelNone so an unexpected grant can never widen visibility.
func ParseLevel(role string) AccessLevel {
	switch strings.TrimSpace(strings.ToLower(role)) {
	case RoleAdmin:
		return LevelAdmin
	case RoleCentralOrg:
		return LevelCentralOrg
	case RoleProvinceUniversity:
		return LevelProvinceUniversity
	case RoleFaculty:
		return LevelFaculty
	default:
		return LevelNone
	}
}

func (l AccessLevel) String() string {
	switch l {
	case LevelAdmin:
		return RoleAdmin
	case LevelCentralOrg:
		return RoleCentralOrg
	case LevelProvinceUniversity:
		return RoleProvinceUniversity
	case LevelFaculty:
		return RoleFaculty
	default:
		return "none"
	}
}

// AtLeast reports whether l grants at least the visibility of min.
func (l AccessLevel) AtLeast(min AccessLevel) bool {
	return l >= min
}

// RoleAssignment is a single granted role with its attached org codes.
// Codes are kept as strings; provinces and faculties use zero-padded
// numeric identifiers in the upstream directory.
type RoleAssignment struct {
	Role           string
	ProvinceCode   string
	UniversityCode string
	FacultyCode    string
}

// PrincipalContext is the immutable scoping context derived from a
// principal's role assignments. Level decides which resources are in reach,
// Scope decides which rows inside them are visible.
type PrincipalContext struct {
	EffectiveLevel AccessLevel
	Scope          Filter
	NationalID     string
}
