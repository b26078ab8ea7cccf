package scope

import (
	"fmt"
	"log/slog"
)

// ConfigurationError reports a role assignment that is missing an org code
// it depends on. A principal whose winning role is misconfigured resolves
// to no effective access at all.
type ConfigurationError struct {
	Role      string
	Dimension Dimension
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("scope: role %q missing required %s", e.Role, e.Dimension)
}

// Resolver builds PrincipalContext values from raw role assignments.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve ranks the principal's roles and derives the effective level and
// scope filter. Roles are additive grants: the widest role present wins,
// and scope codes come from assignments at that winning level only. A
// narrower role held alongside a wider one never narrows the result.
//
// On a ConfigurationError the returned context has LevelNone and callers
// must deny; the resolver never fails open.
func (r *Resolver) Resolve(nationalID string, assignments []RoleAssignment) (PrincipalContext, error) {
	winning := LevelNone
	for _, a := range assignments {
		if level := ParseLevel(a.Role); level > winning {
			winning = level
		}
	}
	if winning == LevelNone {
		return PrincipalContext{EffectiveLevel: LevelNone, Scope: NewFilter(), NationalID: nationalID}, nil
	}

	filter := NewFilter()
	var provinces, universities, faculties []string
	for _, a := range assignments {
		if ParseLevel(a.Role) != winning {
			continue
		}
		switch winning {
		case LevelAdmin, LevelCentralOrg:
			// Unscoped levels contribute no row constraints.
		case LevelProvinceUniversity:
			if a.ProvinceCode == "" {
				return r.misconfigured(nationalID, a.Role, DimProvince)
			}
			provinces = append(provinces, a.ProvinceCode)
			if a.UniversityCode != "" {
				universities = append(universities, a.UniversityCode)
			}
		case LevelFaculty:
			if a.FacultyCode == "" {
				return r.misconfigured(nationalID, a.Role, DimFaculty)
			}
			faculties = append(faculties, a.FacultyCode)
			if a.ProvinceCode != "" {
				provinces = append(provinces, a.ProvinceCode)
			}
			if a.UniversityCode != "" {
				universities = append(universities, a.UniversityCode)
			}
		}
	}
	if len(provinces) > 0 {
		filter = filter.With(DimProvince, provinces...)
	}
	if len(universities) > 0 {
		filter = filter.With(DimUniversity, universities...)
	}
	if len(faculties) > 0 {
		filter = filter.With(DimFaculty, faculties...)
	}

	return PrincipalContext{EffectiveLevel: winning, Scope: filter, NationalID: nationalID}, nil
}

func (r *Resolver) misconfigured(nationalID, role string, dim Dimension) (PrincipalContext, error) {
	err := &ConfigurationError{Role: role, Dimension: dim}
	r.logger.Warn("scope resolution failed",
		slog.String("role", role),
		slog.String("missing", string(dim)),
	)
	return PrincipalContext{EffectiveLevel: LevelNone, Scope: NewFilter(), NationalID: nationalID}, err
}
