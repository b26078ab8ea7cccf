package scope

import (
	"sort"
	"time"
)

// Dimension identifies one scoping axis of a row-level filter.
type Dimension string

const (
	DimProvince   Dimension = "province_code"
	DimUniversity Dimension = "university_code"
	DimFaculty    Dimension = "faculty_code"
)

// Filter is a per-dimension row constraint. A dimension absent from Allowed
// is unconstrained. A dimension present with an empty slice allows no value
// at all: the filter matches nothing. This is the opposite convention from
// survey access groups, where an empty code set means wildcard; the two
// must never be conflated.
type Filter struct {
	Allowed map[Dimension][]string
	// DateFrom/DateTo bound the visible date range; the zero value means
	// unbounded on that side.
	DateFrom time.Time
	DateTo   time.Time
}

// NewFilter builds an unconstrained filter.
func NewFilter() Filter {
	return Filter{Allowed: map[Dimension][]string{}}
}

// With returns a copy of f constrained to the given values on dim.
func (f Filter) With(dim Dimension, values ...string) Filter {
	out := f.Clone()
	out.Allowed[dim] = normalizeValues(values)
	return out
}

// WithDateRange returns a copy of f bounded to [from, to].
func (f Filter) WithDateRange(from, to time.Time) Filter {
	out := f.Clone()
	out.DateFrom = from
	out.DateTo = to
	return out
}

// Clone deep-copies the filter.
func (f Filter) Clone() Filter {
	out := Filter{
		Allowed:  make(map[Dimension][]string, len(f.Allowed)),
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	}
	for dim, values := range f.Allowed {
		out.Allowed[dim] = append([]string(nil), values...)
	}
	return out
}

// IsEmpty reports whether the filter matches no rows at all: some dimension
// has an exhausted value set, or the date range has a negative width.
func (f Filter) IsEmpty() bool {
	for _, values := range f.Allowed {
		if len(values) == 0 {
			return true
		}
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateFrom.After(f.DateTo) {
		return true
	}
	return false
}

// Values returns the allowed values for dim and whether dim is constrained.
func (f Filter) Values(dim Dimension) ([]string, bool) {
	values, ok := f.Allowed[dim]
	return values, ok
}

// Normalize sorts and deduplicates every value set. Intersect produces
// normalized output; inputs built by hand should be normalized before
// equality comparison.
func (f Filter) Normalize() Filter {
	out := f.Clone()
	for dim, values := range out.Allowed {
		out.Allowed[dim] = normalizeValues(values)
	}
	return out
}

// Equal compares two normalized filters.
func (f Filter) Equal(other Filter) bool {
	if len(f.Allowed) != len(other.Allowed) {
		return false
	}
	for dim, values := range f.Allowed {
		otherValues, ok := other.Allowed[dim]
		if !ok || len(values) != len(otherValues) {
			return false
		}
		for i := range values {
			if values[i] != otherValues[i] {
				return false
			}
		}
	}
	return f.DateFrom.Equal(other.DateFrom) && f.DateTo.Equal(other.DateTo)
}

// Map renders the filter for audit metadata.
func (f Filter) Map() map[string]any {
	out := make(map[string]any, len(f.Allowed)+2)
	for dim, values := range f.Allowed {
		out[string(dim)] = append([]string(nil), values...)
	}
	if !f.DateFrom.IsZero() {
		out["date_from"] = f.DateFrom
	}
	if !f.DateTo.IsZero() {
		out["date_to"] = f.DateTo
	}
	return out
}

// Intersect combines two filters into the constraint satisfying both. For
// each dimension the result is the logical AND: both constrained means set
// intersection (possibly empty, meaning nothing visible), one constrained
// means that one wins. Date ranges narrow to the overlapping interval. The
// function is total and never widens access beyond either input.
func Intersect(a, b Filter) Filter {
	out := NewFilter()
	for dim, values := range a.Allowed {
		if otherValues, ok := b.Allowed[dim]; ok {
			out.Allowed[dim] = intersectValues(values, otherValues)
		} else {
			out.Allowed[dim] = normalizeValues(values)
		}
	}
	for dim, values := range b.Allowed {
		if _, ok := a.Allowed[dim]; !ok {
			out.Allowed[dim] = normalizeValues(values)
		}
	}
	out.DateFrom = laterOf(a.DateFrom, b.DateFrom)
	out.DateTo = earlierOf(a.DateTo, b.DateTo)
	return out
}

func intersectValues(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(b))
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, ok := set[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func normalizeValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// laterOf treats the zero time as unbounded.
func laterOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.After(b) {
		return a
	}
	return b
}

// earlierOf treats the zero time as unbounded.
func earlierOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}
