package survey

import (
	"fmt"
	"time"
)

// All bucket math is pinned to one canonical timezone. Instances deployed
// in different zones must agree on where a month or quarter ends, otherwise
// two servers could place the same submission in different buckets.
var canonicalZone = time.UTC

// PeriodKey buckets t for quota accounting: monthly 2025-03, quarterly
// 2025-Q1, semester 2025-H1/H2, yearly 2025. Deterministic and monotonic
// non-decreasing in t. ok is false for a period type outside the declared
// enum; callers treat that as a misconfigured survey, never as a bucket.
func PeriodKey(pt PeriodType, t time.Time) (key string, ok bool) {
	t = t.In(canonicalZone)
	switch pt {
	case PeriodMonthly:
		return t.Format("2006-01"), true
	case PeriodQuarterly:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", t.Year(), quarter), true
	case PeriodSemester:
		half := 1
		if t.Month() > time.June {
			half = 2
		}
		return fmt.Sprintf("%04d-H%d", t.Year(), half), true
	case PeriodYearly:
		return fmt.Sprintf("%04d", t.Year()), true
	default:
		return "", false
	}
}
