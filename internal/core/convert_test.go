package core

import "testing"

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "1001", "1001"},
		{"surrounding space", "  Ali Veli \t", "Ali Veli"},
		{"excel formula string", `="1001"`, "1001"},
		{"excel formula", "=1001", "1001"},
		{"quoted", `"9-A"`, "9-A"},
		{"single quoted", "'0123", "0123"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"integer", "12", 12},
		{"dot decimal", "16.5", 16.5},
		{"comma decimal", "16,5", 16.5},
		{"thousands and comma", "1.234,5", 1234.5},
		{"negative net", "-1,25", -1.25},
		{"leading dot", ".75", 0.75},
		{"spaces inside", " 4 12,5 ", 412.5},
		{"blank", "", 0},
		{"dash", "-", 0},
		{"text", "girmedi", 0},
		{"formula", `="7"`, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseNumber(tt.input); got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRank(t *testing.T) {
	tests := map[string]int{
		"12":     12,
		"12/340": 12,
		" 3 / 9": 3,
		"1,0":    1,
		"":       0,
		"-":      0,
		"0":      0,
		"abc":    0,
	}
	for in, want := range tests {
		if got := ParseRank(in); got != want {
			t.Errorf("ParseRank(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestNormalizeStudentNumber(t *testing.T) {
	tests := map[string]string{
		"1001":     "1001",
		"1001.0":   "1001",
		"1001.000": "1001",
		" 1001 ":   "1001",
		`="0042"`:  "0042",
		"1001.5":   "1001.5",
		"A-12":     "A-12",
		"":         "",
	}
	for in, want := range tests {
		if got := NormalizeStudentNumber(in); got != want {
			t.Errorf("NormalizeStudentNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

// ----------------------------------------------------------------------------
// Class label Tests
// ----------------------------------------------------------------------------

func TestSplitClassLabel(t *testing.T) {
	tests := []struct {
		label      string
		wantGrade  string
		wantBranch string
		wantOK     bool
	}{
		{"12-B", "12", "B", true},
		{"9/a", "9", "A", true},
		{"9 a", "9", "A", true},
		{"10A", "10", "A", true},
		{"9-i", "9", "İ", true},
		{"11. Sınıf - C", "11", "C", true},
		{"11.SINIF/D", "11", "D", true},
		{"12", "12", "", true},
		{"08-B", "8", "B", true},
		{"", "", "", false},
		{"Mezun", "", "", false},
		{"0-A", "", "", false},
		{"123-A", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			grade, branch, ok := SplitClassLabel(tt.label)
			if ok != tt.wantOK || grade != tt.wantGrade || branch != tt.wantBranch {
				t.Errorf("SplitClassLabel(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.label, grade, branch, ok, tt.wantGrade, tt.wantBranch, tt.wantOK)
			}
		})
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName("12", "B"); got != "12-B" {
		t.Errorf("ClassName(12, B) = %q, want 12-B", got)
	}
	if got := ClassName("12", ""); got != "12" {
		t.Errorf("ClassName(12, \"\") = %q, want 12", got)
	}
}

func TestIsPlaceholderName(t *testing.T) {
	tests := map[string]bool{
		"":               true,
		" - ":            true,
		"?":              true,
		"Öğrenci 1001":   true,
		"Ayşe Yılmaz":    false,
		"Öğretmen Okulu": false,
	}
	for in, want := range tests {
		if got := isPlaceholderName(in); got != want {
			t.Errorf("isPlaceholderName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := collapseSpaces("  Ayşe    Nur\tYılmaz "); got != "Ayşe Nur Yılmaz" {
		t.Errorf("collapseSpaces() = %q", got)
	}
}
