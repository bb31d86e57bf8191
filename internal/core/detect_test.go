package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

func sheetWithColumns(first string, n int) *sheet.Sheet {
	return sheet.FromRows("t", [][]string{filledRow(first, n)})
}

func TestDetectFormat_AcceptedCounts(t *testing.T) {
	for _, m := range layout.All() {
		t.Run(m.Key(), func(t *testing.T) {
			first := "Öğrenci No"
			if m.Variant == layout.Processed {
				first = layout.SentinelGeneric
			}

			got, err := DetectFormat(sheetWithColumns(first, m.ExpectedColumns), "")
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got.ExamType != m.ExamType || got.Variant != m.Variant {
				t.Errorf("DetectFormat() = %s/%s, want %s", got.ExamType, got.Variant, m.Key())
			}
			if got.Map.ExpectedColumns != m.ExpectedColumns {
				t.Errorf("Map.ExpectedColumns = %d, want %d", got.Map.ExpectedColumns, m.ExpectedColumns)
			}
		})
	}
}

func TestDetectFormat_ProcessedSentinels(t *testing.T) {
	tests := []struct {
		first   string
		cols    int
		want    layout.ExamType
		wantErr bool
	}{
		{"tyt_ogrenci_no", 38, layout.TYT, false},
		{"ayt_ogrenci_no", 56, layout.AYT, false},
		{" AYT_OGRENCI_NO ", 56, layout.AYT, false},
		{"ogrenci_no", 56, layout.AYT, false},
		{"tyt_ogrenci_no", 56, "", true},
		{"ayt_ogrenci_no", 38, "", true},
		{"ogrenci_no", 30, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.first, func(t *testing.T) {
			got, err := DetectFormat(sheetWithColumns(tt.first, tt.cols), "")
			if tt.wantErr {
				if !errors.Is(err, ErrUnrecognizedLayout) {
					t.Fatalf("DetectFormat() error = %v, want ErrUnrecognizedLayout", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got.ExamType != tt.want || got.Variant != layout.Processed {
				t.Errorf("DetectFormat() = %s/%s, want %s/processed", got.ExamType, got.Variant, tt.want)
			}
		})
	}
}

func TestDetectFormat_RejectsOtherCounts(t *testing.T) {
	for _, n := range []int{1, 29, 31, 37, 39, 50, 55, 57, 71, 73} {
		_, err := DetectFormat(sheetWithColumns("No", n), "")
		if !errors.Is(err, ErrUnrecognizedLayout) {
			t.Fatalf("%d columns: error = %v, want ErrUnrecognizedLayout", n, err)
		}
		for _, accepted := range []string{"30", "51", "72", "38", "56"} {
			if !strings.Contains(err.Error(), accepted) {
				t.Errorf("%d columns: error %q does not name accepted count %s", n, err, accepted)
			}
		}
	}
}

func TestDetectFormat_IgnoresTrailingBlankColumns(t *testing.T) {
	row := append(filledRow("No", 30), "", " ")
	got, err := DetectFormat(sheet.FromRows("t", [][]string{row}), layout.LGS)
	if err != nil {
		t.Fatalf("DetectFormat() error = %v", err)
	}
	if got.ExamType != layout.LGS {
		t.Errorf("ExamType = %s, want LGS", got.ExamType)
	}
}

func TestDetectFormat_DeclaredTypeMismatch(t *testing.T) {
	for _, declared := range []layout.ExamType{layout.TYT, layout.AYT} {
		_, err := DetectFormat(sheetWithColumns("No", 30), declared)
		if !errors.Is(err, ErrExamTypeMismatch) {
			t.Errorf("declared %s on LGS sheet: error = %v, want ErrExamTypeMismatch", declared, err)
		}
	}

	if _, err := DetectFormat(sheetWithColumns("No", 30), layout.LGS); err != nil {
		t.Errorf("declared LGS on LGS sheet: error = %v", err)
	}
}

func TestValidateExamTypeMatch(t *testing.T) {
	tests := []struct {
		declared, detected layout.ExamType
		wantErr            bool
	}{
		{"", layout.LGS, false},
		{layout.TYT, layout.TYT, false},
		{layout.TYT, layout.AYT, true},
		{layout.LGS, layout.TYT, true},
	}
	for _, tt := range tests {
		err := ValidateExamTypeMatch(tt.declared, tt.detected)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateExamTypeMatch(%q, %q) error = %v, wantErr %v", tt.declared, tt.detected, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrExamTypeMismatch) {
			t.Errorf("error %v does not wrap ErrExamTypeMismatch", err)
		}
	}
}
