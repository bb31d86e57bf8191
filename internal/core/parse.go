package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

// summaryMarkers are student-number cell values of aggregate and footer rows.
// Compared after Turkish lowercasing.
var summaryMarkers = map[string]bool{
	"genel":  true,
	"okul":   true,
	"kurum":  true,
	"ilçe":   true,
	"il":     true,
	"toplam": true,
	"sınıf":  true,
}

// placeholderNumbers are values exporters write when the number is unknown.
var placeholderNumbers = map[string]bool{
	"0": true,
	"*": true,
	"?": true,
}

var nationalIDRegex = regexp.MustCompile(`^\d{11}$`)

// ParseRows reads every student row of a sheet using the given column map.
//
// Summary rows are dropped. Rows with an unusable student number, and every
// repeat of a number already seen, are emitted invalid without their fields;
// the first occurrence of a number is the one that counts.
func ParseRows(sh *sheet.Sheet, m layout.ColumnMap) []ParsedRow {
	rows := make([]ParsedRow, 0, max(sh.NumRows()-m.DataStartRow, 0))
	seen := make(map[string]int)

	for r := m.DataStartRow; r < sh.NumRows(); r++ {
		raw := sh.Cell(r, m.StudentNumberCol)
		if isSummaryRow(raw) {
			continue
		}

		number := NormalizeStudentNumber(raw)
		row := ParsedRow{
			Line:             r + 1,
			StudentNumber:    number,
			IsValid:          true,
			ValidationStatus: StatusValid,
		}

		if !ValidStudentNumber(number) {
			row.markInvalid(StatusInvalidNumber, invalidNumberReason(number))
			rows = append(rows, row)
			continue
		}

		if first, dup := seen[number]; dup {
			row.markInvalid(StatusDuplicateInFile, duplicateInFileReason(first))
			rows = append(rows, row)
			continue
		}
		seen[number] = row.Line

		extractFields(sh, r, m, &row)
		rows = append(rows, row)
	}

	return rows
}

// ValidStudentNumber reports whether a cleaned student number can identify a
// student: present, not a placeholder and containing at least one digit.
func ValidStudentNumber(number string) bool {
	if number == "" || placeholderNumbers[number] {
		return false
	}
	return strings.ContainsFunc(number, unicode.IsDigit)
}

func isSummaryRow(cell string) bool {
	s := lowerTR.String(collapseSpaces(CleanCell(cell)))
	if s == "" {
		return true
	}
	return summaryMarkers[s] || strings.Contains(s, "ortalama")
}

func extractFields(sh *sheet.Sheet, r int, m layout.ColumnMap, row *ParsedRow) {
	cell := func(c int) string {
		if c == layout.None {
			return ""
		}
		return sh.Cell(r, c)
	}
	num := func(c int) float64 { return ParseNumber(cell(c)) }

	row.Name = collapseSpaces(CleanCell(cell(m.NameCol)))

	if label := collapseSpaces(CleanCell(cell(m.ClassCol))); label != "" {
		row.Class = label
		if grade, branch, ok := SplitClassLabel(label); ok {
			row.Grade, row.Branch = grade, branch
		} else {
			row.addReason(fmt.Sprintf("Sınıf bilgisi okunamadı: %q", label))
		}
	}

	if id := NormalizeStudentNumber(cell(m.NationalIDCol)); id != "" {
		if nationalIDRegex.MatchString(id) {
			row.NationalID = id
		} else {
			row.addReason(fmt.Sprintf("T.C. kimlik numarası 11 haneli olmalı, dikkate alınmadı: %q", id))
		}
	}

	row.Lessons = make([]LessonResult, 0, len(m.Lessons)+len(m.MergeRules))
	for _, l := range m.Lessons {
		lr := LessonResult{
			Name:      l.Name,
			Correct:   num(l.Correct),
			Incorrect: num(l.Incorrect),
			Net:       num(l.Net),
		}
		if l.Point != layout.None {
			lr.Point = num(l.Point)
		}
		row.Lessons = append(row.Lessons, lr)
	}
	for _, rule := range m.MergeRules {
		merged := LessonResult{Name: rule.Name}
		for _, src := range rule.Sources {
			merged.Correct += num(src[0])
			merged.Incorrect += num(src[1])
			merged.Net += num(src[2])
		}
		row.Lessons = append(row.Lessons, merged)
	}

	row.Scores = make([]Score, 0, len(m.Scores))
	for _, s := range m.Scores {
		row.Scores = append(row.Scores, Score{Type: s.Type, Value: num(s.Col)})
	}

	row.Ranks = make([]Rank, 0, len(m.Ranks))
	for _, rk := range m.Ranks {
		row.Ranks = append(row.Ranks, Rank{Label: rk.Label, Value: ParseRank(cell(rk.Col))})
	}
}

func invalidNumberReason(number string) string {
	if number == "" {
		return "Öğrenci numarası boş"
	}
	return fmt.Sprintf("Geçersiz öğrenci numarası: %q", number)
}

func duplicateInFileReason(firstLine int) string {
	return fmt.Sprintf("Öğrenci numarası dosyada birden fazla kez geçiyor (ilk satır: %d)", firstLine)
}
