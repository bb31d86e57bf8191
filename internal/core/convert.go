package core

// convert.go turns spreadsheet cell text into typed values.
//
// Cells arrive in whatever shape the vendor's exporter produced:
//   - numbers with a Turkish decimal comma ("16,5") or thousands dots ("1.234,5")
//   - ranks written as "12/340" (rank out of participants)
//   - Excel formula prefixes (="1001")
//   - student numbers exported as floats ("1001.0")
//
// Numeric helpers never fail: anything unreadable becomes zero, which is what
// the result sheets mean by a blank cell.

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// numericRegex validates a number after separators are normalized.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// integralFloatRegex matches numbers exported as floats with a zero fraction.
var integralFloatRegex = regexp.MustCompile(`^(\d+)\.0+$`)

// classLabelRegex matches lowercased class labels: "12-b", "9/a", "9 a",
// "9a", "10. sınıf - c", "11".
var classLabelRegex = regexp.MustCompile(`^(\d{1,2})\s*\.?\s*(?:sınıf)?\s*[-/.\s]*\s*(\p{L}{1,3})?$`)

var (
	upperTR = cases.Upper(language.Turkish)
	lowerTR = cases.Lower(language.Turkish)
)

// CleanCell trims whitespace, an Excel formula prefix and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseNumber reads a cell as a float. Blank or non-numeric cells yield 0.
func ParseNumber(s string) float64 {
	s = CleanCell(s)
	if s == "" {
		return 0
	}

	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// "1.234,5": dots group thousands, comma is the decimal mark
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	if !numericRegex.MatchString(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseRank reads a rank cell. "12/340" yields 12; blanks and garbage yield 0.
func ParseRank(s string) int {
	s = CleanCell(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	f := ParseNumber(s)
	if f <= 0 {
		return 0
	}
	return int(f + 0.5)
}

// NormalizeStudentNumber cleans a student-number cell for comparison.
func NormalizeStudentNumber(s string) string {
	s = CleanCell(s)
	if m := integralFloatRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// SplitClassLabel splits a combined label such as "12-B" into grade and
// branch. The branch is uppercased with Turkish rules ("9-i" -> "9", "İ").
func SplitClassLabel(label string) (grade, branch string, ok bool) {
	s := lowerTR.String(strings.TrimSpace(label))
	m := classLabelRegex.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	grade = strings.TrimLeft(m[1], "0")
	if grade == "" {
		return "", "", false
	}
	return grade, upperTR.String(m[2]), true
}

// ClassName joins grade and branch into the stored class name.
func ClassName(grade, branch string) string {
	if branch == "" {
		return grade
	}
	return grade + "-" + branch
}

// placeholderNamePrefix names students whose sheet row had no name.
const placeholderNamePrefix = "Öğrenci "

// isPlaceholderName reports whether a name carries no information.
func isPlaceholderName(name string) bool {
	name = strings.TrimSpace(name)
	switch name {
	case "", "-", "?", "*":
		return true
	}
	return strings.HasPrefix(name, placeholderNamePrefix)
}

// collapseSpaces folds runs of whitespace, including NBSP, into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, " ", " ")), " ")
}
