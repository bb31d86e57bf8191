// Package layout holds the static column maps of every accepted result sheet.
//
// A result sheet is produced by an external exam vendor (raw layouts) or by the
// platform's own pre-aggregation template (processed layouts). Each layout is a
// rigid, institution-defined arrangement of columns, so the maps here are pure
// data: column indices, merge rules and the labels used for scores and ranks.
//
// Maps are resolved through [Lookup], which is exhaustive over the closed set of
// (exam type, variant) pairs; there is no fallback map.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownExamType is returned by ParseExamType for names outside LGS, TYT
// and AYT.
var ErrUnknownExamType = errors.New("unknown exam type")

// ExamType is the exam family a sheet belongs to.
type ExamType string

const (
	LGS ExamType = "LGS"
	TYT ExamType = "TYT"
	AYT ExamType = "AYT"
)

// ParseExamType normalizes a caller-declared exam type.
// An empty string yields an empty type (nothing declared).
func ParseExamType(s string) (ExamType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch ExamType(s) {
	case "":
		return "", nil
	case LGS, TYT, AYT:
		return ExamType(s), nil
	default:
		return "", fmt.Errorf("%w %q (expected LGS, TYT or AYT)", ErrUnknownExamType, s)
	}
}

// CombinedScore reports whether the exam type produces several score types
// whose rank columns are namespaced per score type (e.g. "SAY Sınıf").
func (t ExamType) CombinedScore() bool {
	return t == AYT
}

// Variant distinguishes vendor exports from pre-aggregated templates.
type Variant string

const (
	Raw       Variant = "raw"
	Processed Variant = "processed"
)

// None marks an optional column that the layout does not carry.
const None = -1

// LessonColumns locates one lesson's correct/incorrect/net triple.
type LessonColumns struct {
	Name      string
	Correct   int
	Incorrect int
	Net       int
	Point     int // None when the layout has no per-lesson point column
}

// MergeRule sums several correct/incorrect/net triples into one virtual lesson.
type MergeRule struct {
	Name    string
	Sources [][3]int
}

// ScoreColumn locates a score value for one score type.
type ScoreColumn struct {
	Type string
	Col  int
}

// RankColumn locates a rank value. Labels are human-readable and, for
// combined-score exams, prefixed with the score type.
type RankColumn struct {
	Label string
	Col   int
}

// ColumnMap describes one accepted layout.
type ColumnMap struct {
	ExamType        ExamType
	Variant         Variant
	ExpectedColumns int
	DataStartRow    int // 0-based index of the first student row

	StudentNumberCol int
	NameCol          int
	ClassCol         int
	NationalIDCol    int

	Lessons     []LessonColumns
	MergeRules  []MergeRule
	SkipColumns []int
	Scores      []ScoreColumn
	Ranks       []RankColumn
}

// Key returns a stable identifier such as "TYT/raw".
func (m ColumnMap) Key() string {
	return string(m.ExamType) + "/" + string(m.Variant)
}

// LessonNames returns the lesson names this map produces, merged lessons last.
func (m ColumnMap) LessonNames() []string {
	names := make([]string, 0, len(m.Lessons)+len(m.MergeRules))
	for _, l := range m.Lessons {
		names = append(names, l.Name)
	}
	for _, r := range m.MergeRules {
		names = append(names, r.Name)
	}
	return names
}

// Validate checks that every column lies inside ExpectedColumns and that no
// column is claimed by two fields.
func (m ColumnMap) Validate() error {
	claimed := make(map[int]string)
	var errs []string

	claim := func(col int, what string, optional bool) {
		if col == None && optional {
			return
		}
		if col < 0 || col >= m.ExpectedColumns {
			errs = append(errs, fmt.Sprintf("%s: column %d outside 0..%d", what, col, m.ExpectedColumns-1))
			return
		}
		if prev, ok := claimed[col]; ok {
			errs = append(errs, fmt.Sprintf("%s: column %d already used by %s", what, col, prev))
			return
		}
		claimed[col] = what
	}

	claim(m.StudentNumberCol, "student number", false)
	claim(m.NameCol, "name", true)
	claim(m.ClassCol, "class", true)
	claim(m.NationalIDCol, "national id", true)
	for _, l := range m.Lessons {
		claim(l.Correct, l.Name+" correct", false)
		claim(l.Incorrect, l.Name+" incorrect", false)
		claim(l.Net, l.Name+" net", false)
		claim(l.Point, l.Name+" point", true)
	}
	for _, r := range m.MergeRules {
		if len(r.Sources) < 2 {
			errs = append(errs, fmt.Sprintf("merge %s: needs at least two sources", r.Name))
		}
		for _, src := range r.Sources {
			claim(src[0], r.Name+" correct", false)
			claim(src[1], r.Name+" incorrect", false)
			claim(src[2], r.Name+" net", false)
		}
	}
	for _, s := range m.Scores {
		claim(s.Col, "score "+s.Type, false)
	}
	for _, r := range m.Ranks {
		claim(r.Col, "rank "+r.Label, false)
	}
	for _, c := range m.SkipColumns {
		claim(c, "skip", false)
	}
	if m.DataStartRow < 1 {
		errs = append(errs, "data start row must leave room for a header row")
	}
	if len(claimed) != m.ExpectedColumns {
		errs = append(errs, fmt.Sprintf("%d of %d columns accounted for", len(claimed), m.ExpectedColumns))
	}

	if len(errs) > 0 {
		return fmt.Errorf("layout %s: %s", m.Key(), strings.Join(errs, "; "))
	}
	return nil
}

// Lookup returns the map for an (exam type, variant) pair.
func Lookup(t ExamType, v Variant) (ColumnMap, error) {
	switch v {
	case Raw:
		switch t {
		case LGS:
			return lgsRaw, nil
		case TYT:
			return tytRaw, nil
		case AYT:
			return aytRaw, nil
		}
	case Processed:
		switch t {
		case TYT:
			return tytProcessed, nil
		case AYT:
			return aytProcessed, nil
		}
	}
	return ColumnMap{}, fmt.Errorf("no %s layout for exam type %q", v, t)
}

// All returns every registered map, ordered by exam type then variant.
func All() []ColumnMap {
	maps := []ColumnMap{lgsRaw, tytRaw, aytRaw, tytProcessed, aytProcessed}
	sort.SliceStable(maps, func(i, j int) bool {
		if maps[i].ExamType != maps[j].ExamType {
			return maps[i].ExamType < maps[j].ExamType
		}
		return maps[i].Variant > maps[j].Variant
	})
	return maps
}

// RawByColumns maps a raw sheet's column count to its exam type.
func RawByColumns(n int) (ExamType, bool) {
	for _, m := range []ColumnMap{lgsRaw, tytRaw, aytRaw} {
		if m.ExpectedColumns == n {
			return m.ExamType, true
		}
	}
	return "", false
}

// ProcessedByColumns maps a processed sheet's column count to its exam type.
func ProcessedByColumns(n int) (ExamType, bool) {
	for _, m := range []ColumnMap{tytProcessed, aytProcessed} {
		if m.ExpectedColumns == n {
			return m.ExamType, true
		}
	}
	return "", false
}

// AcceptedCounts lists every accepted column count with the layout it selects,
// in the order used by error messages.
func AcceptedCounts() []string {
	maps := []ColumnMap{lgsRaw, tytRaw, aytRaw, tytProcessed, aytProcessed}
	out := make([]string, len(maps))
	for i, m := range maps {
		out[i] = fmt.Sprintf("%d (%s %s)", m.ExpectedColumns, m.ExamType, m.Variant)
	}
	return out
}
