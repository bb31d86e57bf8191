package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

var (
	// ErrUnrecognizedLayout is returned when a sheet matches no accepted layout.
	ErrUnrecognizedLayout = errors.New("unrecognized layout")

	// ErrExamTypeMismatch is returned when the declared exam type differs from
	// the one the sheet's layout implies.
	ErrExamTypeMismatch = errors.New("exam type mismatch")
)

// DetectFormat picks the column map for a sheet.
//
// A processed sheet is recognized by a sentinel token in its first header
// cell; the token names the exam type or, for the generic token, the column
// count decides. Every other sheet is matched as a raw export by column count
// alone. When declared is non-empty it must agree with the detected type.
func DetectFormat(sh *sheet.Sheet, declared layout.ExamType) (Format, error) {
	cols := sh.ColumnCount()

	examType, variant, err := detectLayout(sh.HeaderCell(0), cols)
	if err != nil {
		return Format{}, err
	}

	if err := ValidateExamTypeMatch(declared, examType); err != nil {
		return Format{}, err
	}

	m, err := layout.Lookup(examType, variant)
	if err != nil {
		return Format{}, err
	}

	return Format{
		ExamType: examType,
		Variant:  variant,
		Map:      m,
		Columns:  cols,
	}, nil
}

func detectLayout(firstCell string, cols int) (layout.ExamType, layout.Variant, error) {
	token := strings.ToLower(strings.TrimSpace(firstCell))

	if implied, ok := layout.ProcessedSentinel(token); ok {
		byCount, known := layout.ProcessedByColumns(cols)
		switch {
		case !known:
			return "", "", unrecognized(cols)
		case implied != "" && implied != byCount:
			return "", "", fmt.Errorf("%w: header %q names %s but %d columns is the %s processed layout",
				ErrUnrecognizedLayout, token, implied, cols, byCount)
		}
		return byCount, layout.Processed, nil
	}

	if t, ok := layout.RawByColumns(cols); ok {
		return t, layout.Raw, nil
	}
	return "", "", unrecognized(cols)
}

func unrecognized(cols int) error {
	return fmt.Errorf("%w: %d columns detected, accepted column counts are %s",
		ErrUnrecognizedLayout, cols, strings.Join(layout.AcceptedCounts(), ", "))
}

// ValidateExamTypeMatch fails when a declared exam type disagrees with the
// detected one. An empty declared type accepts anything.
func ValidateExamTypeMatch(declared, detected layout.ExamType) error {
	if declared == "" || declared == detected {
		return nil
	}
	return fmt.Errorf("%w: declared %s but the file is a %s sheet", ErrExamTypeMismatch, declared, detected)
}
