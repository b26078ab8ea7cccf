package scope

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersectOverrideNarrowsRoleScope(t *testing.T) {
	// A faculty principal with an override listing two faculties may still
	// only see their own faculty: intersection, never union.
	base := NewFilter().
		With(DimFaculty, "1001").
		With(DimProvince, "7")
	override := NewFilter().
		With(DimFaculty, "1001", "1002")

	effective := Intersect(base, override)

	faculties, ok := effective.Values(DimFaculty)
	require.True(t, ok)
	assert.Equal(t, []string{"1001"}, faculties)
	provinces, ok := effective.Values(DimProvince)
	require.True(t, ok)
	assert.Equal(t, []string{"7"}, provinces)
	assert.False(t, effective.IsEmpty())
}

func TestIntersectDisjointSetsMeansNothingVisible(t *testing.T) {
	a := NewFilter().With(DimProvince, "3")
	b := NewFilter().With(DimProvince, "7")

	effective := Intersect(a, b)

	values, ok := effective.Values(DimProvince)
	require.True(t, ok)
	assert.Empty(t, values)
	assert.True(t, effective.IsEmpty(), "disjoint sets must yield no data, not all data")
}

func TestIntersectUnconstrainedSideDefersToConstrained(t *testing.T) {
	constrained := NewFilter().With(DimUniversity, "10", "11")
	effective := Intersect(NewFilter(), constrained)

	values, ok := effective.Values(DimUniversity)
	require.True(t, ok)
	assert.Equal(t, []string{"10", "11"}, values)
}

func TestIntersectDateRanges(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("overlap", func(t *testing.T) {
		a := NewFilter().WithDateRange(jan, jun)
		b := NewFilter().WithDateRange(mar, sep)
		effective := Intersect(a, b)
		assert.Equal(t, mar, effective.DateFrom)
		assert.Equal(t, jun, effective.DateTo)
		assert.False(t, effective.IsEmpty())
	})

	t.Run("no overlap", func(t *testing.T) {
		a := NewFilter().WithDateRange(jan, mar)
		b := NewFilter().WithDateRange(jun, sep)
		effective := Intersect(a, b)
		assert.True(t, effective.IsEmpty(), "empty date overlap must mean no visible data")
	})

	t.Run("one side unbounded", func(t *testing.T) {
		a := NewFilter().WithDateRange(mar, time.Time{})
		b := NewFilter()
		effective := Intersect(a, b)
		assert.Equal(t, mar, effective.DateFrom)
		assert.True(t, effective.DateTo.IsZero())
	})
}

// TestIntersectAlgebraProperties checks commutativity, associativity,
// idempotency and the narrowing invariant over randomly generated filters.
// Narrowing is the core security property: an intersection may never allow
// a value that either input excluded.
func TestIntersectAlgebraProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		a := randomFilter(rng)
		b := randomFilter(rng)
		c := randomFilter(rng)

		ab := Intersect(a, b)
		ba := Intersect(b, a)
		require.True(t, ab.Equal(ba), "commutativity violated:\na=%v\nb=%v", a.Allowed, b.Allowed)

		abc := Intersect(Intersect(a, b), c)
		acb := Intersect(a, Intersect(b, c))
		require.True(t, abc.Equal(acb), "associativity violated")

		aa := Intersect(a, a)
		require.True(t, aa.Equal(a.Normalize()), "idempotency violated: %v vs %v", aa.Allowed, a.Normalize().Allowed)

		assertNarrows(t, ab, a)
		assertNarrows(t, ab, b)
	}
}

// assertNarrows verifies effective ⊆ input on every dimension the input
// constrains, and that the effective date range lies inside the input's.
func assertNarrows(t *testing.T, effective, input Filter) {
	t.Helper()
	for dim, inputValues := range input.Allowed {
		effectiveValues, ok := effective.Values(dim)
		require.True(t, ok, "dimension %s lost its constraint", dim)
		allowed := make(map[string]struct{}, len(inputValues))
		for _, v := range inputValues {
			allowed[v] = struct{}{}
		}
		for _, v := range effectiveValues {
			_, ok := allowed[v]
			require.True(t, ok, "value %s on %s widens beyond input", v, dim)
		}
	}
	if !input.DateFrom.IsZero() {
		require.False(t, effective.DateFrom.Before(input.DateFrom))
	}
	if !input.DateTo.IsZero() {
		require.False(t, effective.DateTo.IsZero() || effective.DateTo.After(input.DateTo))
	}
}

func randomFilter(rng *rand.Rand) Filter {
	f := NewFilter()
	dims := []Dimension{DimProvince, DimUniversity, DimFaculty}
	for _, dim := range dims {
		switch rng.Intn(3) {
		case 0:
			// unconstrained
		case 1:
			f.Allowed[dim] = randomValues(rng, 1+rng.Intn(4))
		case 2:
			f.Allowed[dim] = []string{}
		}
	}
	if rng.Intn(2) == 0 {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		from := base.AddDate(0, rng.Intn(12), 0)
		to := base.AddDate(0, rng.Intn(12), 0)
		f.DateFrom = from
		f.DateTo = to
	}
	return f
}

func randomValues(rng *rand.Rand, n int) []string {
	values := make([]string, 0, n)
	for i := 0; i < n; i++ {
		values = append(values, fmt.Sprintf("%d", rng.Intn(8)))
	}
	return values
}
