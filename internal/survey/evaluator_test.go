package survey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

var evalNow = time.Date(2025, 8, 29, 10, 0, 0, 0, time.UTC)

func activeSurvey(at AccessType) Survey {
	return Survey{ID: 1, Title: "campus pulse", AccessType: at, Status: StatusActive}
}

func authedRespondent(roles ...scope.RoleAssignment) Respondent {
	return Respondent{NationalID: "1234567890", Roles: roles}
}

func TestEvaluateClosedStates(t *testing.T) {
	past := evalNow.Add(-time.Hour)
	future := evalNow.Add(time.Hour)

	inactive := activeSurvey(AccessPublic)
	inactive.Status = StatusInactive
	notStarted := activeSurvey(AccessPublic)
	notStarted.StartAt = &future
	ended := activeSurvey(AccessPublic)
	ended.EndAt = &past

	for name, sv := range map[string]Survey{"inactive": inactive, "not_started": notStarted, "ended": ended} {
		got := Evaluate(sv, authedRespondent(), nil, false, "", evalNow)
		assert.False(t, got.Eligible, name)
		assert.Equal(t, shared.ReasonClosed, got.Reason, name)
	}
}

func TestEvaluatePublic(t *testing.T) {
	sv := activeSurvey(AccessPublic)

	assert.True(t, Evaluate(sv, authedRespondent(), nil, false, "", evalNow).Eligible)

	anon := Evaluate(sv, Respondent{Anonymous: true, AnonToken: "tok"}, nil, false, "", evalNow)
	assert.False(t, anon.Eligible)
	assert.Equal(t, shared.ReasonNotWhitelisted, anon.Reason)
}

func TestEvaluateAnonymousPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	assert.NoError(t, err)

	open := activeSurvey(AccessAnonymous)
	assert.True(t, Evaluate(open, Respondent{Anonymous: true}, nil, false, "", evalNow).Eligible)

	gated := activeSurvey(AccessAnonymous)
	gated.AnonymousPasswordHash = string(hash)

	missing := Evaluate(gated, Respondent{Anonymous: true}, nil, false, "", evalNow)
	assert.Equal(t, shared.ReasonPasswordRequired, missing.Reason)

	wrong := Evaluate(gated, Respondent{Anonymous: true}, nil, false, "nope", evalNow)
	assert.Equal(t, shared.ReasonPasswordRequired, wrong.Reason)

	assert.True(t, Evaluate(gated, Respondent{Anonymous: true}, nil, false, "sesame", evalNow).Eligible)
}

func TestEvaluateSpecificUsers(t *testing.T) {
	sv := activeSurvey(AccessSpecificUsers)

	assert.True(t, Evaluate(sv, authedRespondent(), nil, true, "", evalNow).Eligible)

	off := Evaluate(sv, authedRespondent(), nil, false, "", evalNow)
	assert.Equal(t, shared.ReasonNotWhitelisted, off.Reason)

	anon := Evaluate(sv, Respondent{Anonymous: true}, nil, true, "", evalNow)
	assert.Equal(t, shared.ReasonNotWhitelisted, anon.Reason)
}

func TestEvaluateUserGroupsWildcardCodes(t *testing.T) {
	// A group with a role and no province codes admits that role from any
	// province. Empty code sets widen here, unlike in the filter algebra.
	sv := activeSurvey(AccessUserGroups)
	groups := []AccessGroup{{SurveyID: sv.ID, Role: scope.RoleProvinceUniversity}}

	r := authedRespondent(scope.RoleAssignment{
		Role:           scope.RoleProvinceUniversity,
		ProvinceCode:   "3",
		UniversityCode: "10",
	})
	assert.True(t, Evaluate(sv, r, groups, false, "", evalNow).Eligible)
}

func TestEvaluateUserGroupsCodePinning(t *testing.T) {
	sv := activeSurvey(AccessUserGroups)
	groups := []AccessGroup{{
		SurveyID:      sv.ID,
		Role:          scope.RoleFaculty,
		FacultyCodes:  []string{"1001", "1002"},
		ProvinceCodes: []string{"7"},
	}}

	in := authedRespondent(scope.RoleAssignment{Role: scope.RoleFaculty, ProvinceCode: "7", FacultyCode: "1001"})
	assert.True(t, Evaluate(sv, in, groups, false, "", evalNow).Eligible)

	wrongFaculty := authedRespondent(scope.RoleAssignment{Role: scope.RoleFaculty, ProvinceCode: "7", FacultyCode: "1003"})
	got := Evaluate(sv, wrongFaculty, groups, false, "", evalNow)
	assert.Equal(t, shared.ReasonGroupMismatch, got.Reason)

	wrongRole := authedRespondent(scope.RoleAssignment{Role: scope.RoleCentralOrg})
	assert.False(t, Evaluate(sv, wrongRole, groups, false, "", evalNow).Eligible)

	// A constrained dimension rejects assignments that carry no code at all.
	noCode := authedRespondent(scope.RoleAssignment{Role: scope.RoleFaculty, ProvinceCode: "7"})
	assert.False(t, Evaluate(sv, noCode, groups, false, "", evalNow).Eligible)
}

func TestEvaluateUserGroupsAnySatisfyingPair(t *testing.T) {
	sv := activeSurvey(AccessUserGroups)
	groups := []AccessGroup{
		{SurveyID: sv.ID, Role: scope.RoleAdmin},
		{SurveyID: sv.ID, Role: scope.RoleFaculty, FacultyCodes: []string{"1001"}},
	}
	r := authedRespondent(
		scope.RoleAssignment{Role: scope.RoleCentralOrg},
		scope.RoleAssignment{Role: scope.RoleFaculty, FacultyCode: "1001"},
	)
	assert.True(t, Evaluate(sv, r, groups, false, "", evalNow).Eligible)

	anon := Evaluate(sv, Respondent{Anonymous: true}, groups, false, "", evalNow)
	assert.Equal(t, shared.ReasonGroupMismatch, anon.Reason)
}

func TestEvaluateUnknownAccessType(t *testing.T) {
	sv := activeSurvey(AccessType("invite_only"))
	got := Evaluate(sv, authedRespondent(), nil, false, "", evalNow)
	assert.False(t, got.Eligible)
	assert.Equal(t, shared.ReasonMisconfigured, got.Reason)
}
