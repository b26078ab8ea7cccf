package scope

import (
	"errors"
	"testing"
)

func TestResolveWidestRoleWins(t *testing.T) {
	resolver := NewResolver(nil)

	cases := []struct {
		name        string
		assignments []RoleAssignment
		wantLevel   AccessLevel
	}{
		{
			name:        "single faculty role",
			assignments: []RoleAssignment{{Role: RoleFaculty, FacultyCode: "1001", ProvinceCode: "7"}},
			wantLevel:   LevelFaculty,
		},
		{
			name: "central org beats faculty",
			assignments: []RoleAssignment{
				{Role: RoleFaculty, FacultyCode: "1001"},
				{Role: RoleCentralOrg},
			},
			wantLevel: LevelCentralOrg,
		},
		{
			name: "admin beats everything",
			assignments: []RoleAssignment{
				{Role: RoleProvinceUniversity, ProvinceCode: "3"},
				{Role: RoleAdmin},
			},
			wantLevel: LevelAdmin,
		},
		{
			name:        "unknown role yields no access",
			assignments: []RoleAssignment{{Role: "superuser"}},
			wantLevel:   LevelNone,
		},
		{
			name:        "no assignments",
			assignments: nil,
			wantLevel:   LevelNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pc, err := resolver.Resolve("0012345678", tc.assignments)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if pc.EffectiveLevel != tc.wantLevel {
				t.Fatalf("expected level %s, got %s", tc.wantLevel, pc.EffectiveLevel)
			}
		})
	}
}

func TestResolveAddingLowerRoleNeverChangesLevel(t *testing.T) {
	resolver := NewResolver(nil)
	base := []RoleAssignment{{Role: RoleCentralOrg}}
	pc, err := resolver.Resolve("x", base)
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}
	widened := append(base, RoleAssignment{Role: RoleFaculty, FacultyCode: "5"})
	pc2, err := resolver.Resolve("x", widened)
	if err != nil {
		t.Fatalf("resolve widened: %v", err)
	}
	if pc2.EffectiveLevel != pc.EffectiveLevel {
		t.Fatalf("lower role changed level: %s -> %s", pc.EffectiveLevel, pc2.EffectiveLevel)
	}
	if len(pc2.Scope.Allowed) != 0 {
		t.Fatalf("central_org must stay unscoped, got %v", pc2.Scope.Allowed)
	}
}

func TestResolveScopeComesFromWinningRoleOnly(t *testing.T) {
	resolver := NewResolver(nil)
	pc, err := resolver.Resolve("x", []RoleAssignment{
		{Role: RoleFaculty, FacultyCode: "1001", ProvinceCode: "7"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	faculties, ok := pc.Scope.Values(DimFaculty)
	if !ok || len(faculties) != 1 || faculties[0] != "1001" {
		t.Fatalf("expected faculty scope [1001], got %v", faculties)
	}
	provinces, ok := pc.Scope.Values(DimProvince)
	if !ok || len(provinces) != 1 || provinces[0] != "7" {
		t.Fatalf("expected province scope [7], got %v", provinces)
	}
}

func TestResolveMissingCodeIsConfigurationError(t *testing.T) {
	resolver := NewResolver(nil)
	pc, err := resolver.Resolve("x", []RoleAssignment{{Role: RoleFaculty}})
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if confErr.Dimension != DimFaculty {
		t.Fatalf("expected missing faculty_code, got %s", confErr.Dimension)
	}
	if pc.EffectiveLevel != LevelNone {
		t.Fatalf("misconfigured principal must resolve to no access, got %s", pc.EffectiveLevel)
	}
}

func TestResolveProvinceUniversityRequiresProvince(t *testing.T) {
	resolver := NewResolver(nil)
	_, err := resolver.Resolve("x", []RoleAssignment{{Role: RoleProvinceUniversity, UniversityCode: "10"}})
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
