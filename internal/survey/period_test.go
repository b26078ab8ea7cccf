package survey

import (
	"testing"
	"time"
)

func mustPeriodKey(t *testing.T, pt PeriodType, at time.Time) string {
	t.Helper()
	key, ok := PeriodKey(pt, at)
	if !ok {
		t.Fatalf("PeriodKey(%s) rejected a declared period type", pt)
	}
	return key
}

func TestPeriodKeyFormats(t *testing.T) {
	at := time.Date(2025, 8, 15, 12, 30, 0, 0, time.UTC)
	cases := []struct {
		pt   PeriodType
		want string
	}{
		{PeriodMonthly, "2025-08"},
		{PeriodQuarterly, "2025-Q3"},
		{PeriodSemester, "2025-H2"},
		{PeriodYearly, "2025"},
	}
	for _, tc := range cases {
		if got := mustPeriodKey(t, tc.pt, at); got != tc.want {
			t.Errorf("PeriodKey(%s) = %q, want %q", tc.pt, got, tc.want)
		}
	}
}

func TestPeriodKeyUnknownType(t *testing.T) {
	key, ok := PeriodKey(PeriodType("weekly"), time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	if ok {
		t.Fatalf("unknown period type produced bucket %q", key)
	}
	if key != "" {
		t.Fatalf("rejected period type must not leak a key, got %q", key)
	}
}

func TestPeriodKeyQuarterBoundaries(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.January, "2025-Q1"},
		{time.March, "2025-Q1"},
		{time.April, "2025-Q2"},
		{time.June, "2025-Q2"},
		{time.July, "2025-Q3"},
		{time.September, "2025-Q3"},
		{time.October, "2025-Q4"},
		{time.December, "2025-Q4"},
	}
	for _, tc := range cases {
		at := time.Date(2025, tc.month, 1, 0, 0, 0, 0, time.UTC)
		if got := mustPeriodKey(t, PeriodQuarterly, at); got != tc.want {
			t.Errorf("quarter for %s = %q, want %q", tc.month, got, tc.want)
		}
	}
}

func TestPeriodKeySemesterBoundary(t *testing.T) {
	june := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if got := mustPeriodKey(t, PeriodSemester, june); got != "2025-H1" {
		t.Errorf("june = %q, want 2025-H1", got)
	}
	if got := mustPeriodKey(t, PeriodSemester, july); got != "2025-H2" {
		t.Errorf("july = %q, want 2025-H2", got)
	}
}

func TestPeriodKeyStableWithinBucketDistinctAcross(t *testing.T) {
	early := time.Date(2025, 3, 1, 0, 0, 1, 0, time.UTC)
	late := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	next := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if mustPeriodKey(t, PeriodMonthly, early) != mustPeriodKey(t, PeriodMonthly, late) {
		t.Fatal("timestamps in the same month must share a key")
	}
	if mustPeriodKey(t, PeriodMonthly, late) == mustPeriodKey(t, PeriodMonthly, next) {
		t.Fatal("adjacent months must never share a key")
	}
}

func TestPeriodKeyMonotonic(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, pt := range []PeriodType{PeriodMonthly, PeriodQuarterly, PeriodSemester, PeriodYearly} {
		prev := mustPeriodKey(t, pt, start)
		for i := 0; i < 48; i++ {
			at := start.AddDate(0, i, 7)
			key := mustPeriodKey(t, pt, at)
			if key < prev {
				t.Fatalf("%s: key %q went backwards from %q at %s", pt, key, prev, at)
			}
			prev = key
		}
	}
}

func TestPeriodKeyIgnoresServerTimezone(t *testing.T) {
	// 2025-07-01 03:00 in UTC+4 is still June 30 in UTC; both
	// representations of the same instant must land in the same bucket.
	zone := time.FixedZone("UTC+4", 4*3600)
	instant := time.Date(2025, 7, 1, 3, 0, 0, 0, zone)
	if got, want := mustPeriodKey(t, PeriodMonthly, instant), mustPeriodKey(t, PeriodMonthly, instant.UTC()); got != want {
		t.Fatalf("zone-dependent keys: %q vs %q", got, want)
	}
	if got := mustPeriodKey(t, PeriodMonthly, instant); got != "2025-06" {
		t.Fatalf("expected UTC bucket 2025-06, got %q", got)
	}
}
