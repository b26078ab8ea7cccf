package directory

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Province is a top-level organisational unit.
type Province struct {
	Code string
	Name string
}

// University belongs to exactly one province.
type University struct {
	Code         string
	ProvinceCode string
	Name         string
}

// Faculty belongs to exactly one university.
type Faculty struct {
	Code           string
	UniversityCode string
	Name           string
}

// Table is one immutable snapshot of the organisational hierarchy. Readers
// share a snapshot; a reload swaps in a fresh one and never mutates a
// published table. All slices are collated by name at build time, so readers
// never sort.
type Table struct {
	provinces    []Province
	universities []University
	faculties    []Faculty

	provinceByCode   map[string]Province
	universityByCode map[string]University
	facultyByCode    map[string]Faculty
	universitiesIn   map[string][]University
	facultiesIn      map[string][]Faculty
}

func newTable(provinces []Province, universities []University, faculties []Faculty) *Table {
	t := &Table{
		provinces:        provinces,
		universities:     universities,
		faculties:        faculties,
		provinceByCode:   make(map[string]Province, len(provinces)),
		universityByCode: make(map[string]University, len(universities)),
		facultyByCode:    make(map[string]Faculty, len(faculties)),
		universitiesIn:   make(map[string][]University),
		facultiesIn:      make(map[string][]Faculty),
	}
	for _, p := range provinces {
		t.provinceByCode[p.Code] = p
	}
	for _, u := range universities {
		t.universityByCode[u.Code] = u
		t.universitiesIn[u.ProvinceCode] = append(t.universitiesIn[u.ProvinceCode], u)
	}
	for _, f := range faculties {
		t.facultyByCode[f.Code] = f
		t.facultiesIn[f.UniversityCode] = append(t.facultiesIn[f.UniversityCode], f)
	}
	// Collator.CompareString mutates iterator state, so collation happens
	// here, before the table is published to concurrent readers. Names use
	// the Persian collation of the portal UI.
	c := collate.New(language.Persian)
	sort.SliceStable(t.provinces, func(i, j int) bool {
		return c.CompareString(t.provinces[i].Name, t.provinces[j].Name) < 0
	})
	for _, us := range t.universitiesIn {
		sort.SliceStable(us, func(i, j int) bool {
			return c.CompareString(us[i].Name, us[j].Name) < 0
		})
	}
	for _, fs := range t.facultiesIn {
		sort.SliceStable(fs, func(i, j int) bool {
			return c.CompareString(fs[i].Name, fs[j].Name) < 0
		})
	}
	return t
}

// Province looks up one province by code.
func (t *Table) Province(code string) (Province, bool) {
	p, ok := t.provinceByCode[code]
	return p, ok
}

// University looks up one university by code.
func (t *Table) University(code string) (University, bool) {
	u, ok := t.universityByCode[code]
	return u, ok
}

// Faculty looks up one faculty by code.
func (t *Table) Faculty(code string) (Faculty, bool) {
	f, ok := t.facultyByCode[code]
	return f, ok
}

// Size reports the number of rows in the snapshot.
func (t *Table) Size() int {
	return len(t.provinces) + len(t.universities) + len(t.faculties)
}
