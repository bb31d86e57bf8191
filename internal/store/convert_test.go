package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/examimport/internal/config"
	"github.com/JonMunkholm/examimport/internal/core"
)

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		wantStr   string
	}{
		{"hello", true, "hello"},
		{"  spaced  ", true, "spaced"},
		{"", false, ""},
		{"   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ToPgText(tt.input)
			if got.Valid != tt.wantValid || got.String != tt.wantStr {
				t.Errorf("ToPgText(%q) = %+v, want valid=%v %q", tt.input, got, tt.wantValid, tt.wantStr)
			}
			if back := PgTextToString(got); back != tt.wantStr {
				t.Errorf("PgTextToString() = %q, want %q", back, tt.wantStr)
			}
		})
	}
}

func TestToPgInt4(t *testing.T) {
	tests := []struct {
		input     int
		wantValid bool
	}{
		{0, false},
		{1, true},
		{340, true},
	}
	for _, tt := range tests {
		got := ToPgInt4(tt.input)
		if got.Valid != tt.wantValid || (got.Valid && int(got.Int32) != tt.input) {
			t.Errorf("ToPgInt4(%d) = %+v", tt.input, got)
		}
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	const id = "6f1c2b1e-8a40-4e4b-9f0a-2d6c5f1e7a10"

	got := ToPgUUID(id)
	if !got.Valid {
		t.Fatal("ToPgUUID() returned invalid for a valid uuid")
	}
	if s := PgUUIDToString(got); s != id {
		t.Errorf("PgUUIDToString() = %q, want %q", s, id)
	}

	for _, bad := range []string{"", "exam-1", "6f1c2b1e"} {
		if ToPgUUID(bad).Valid {
			t.Errorf("ToPgUUID(%q) should be invalid", bad)
		}
	}
	if PgUUIDToString(ToPgUUID("")) != "" {
		t.Error("invalid uuid should render empty")
	}
}

func TestToInet(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"192.168.1.10", "192.168.1.10"},
		{"192.168.1.10:5050", "192.168.1.10"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"", ""},
		{"not-an-ip", ""},
	}
	for _, tt := range tests {
		got := toInet(tt.input)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("toInet(%q) = %v, want nil", tt.input, got)
		case tt.want != "" && (got == nil || got.String() != tt.want):
			t.Errorf("toInet(%q) = %v, want %s", tt.input, got, tt.want)
		}
	}
}

func TestNotFound(t *testing.T) {
	if err := notFound(pgx.ErrNoRows); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("notFound(ErrNoRows) = %v, want core.ErrNotFound", err)
	}
	wrapped := fmt.Errorf("scan: %w", pgx.ErrNoRows)
	if err := notFound(wrapped); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("notFound(wrapped) = %v, want core.ErrNotFound", err)
	}
	other := errors.New("connection reset")
	if err := notFound(other); err != other {
		t.Errorf("notFound(other) = %v, want passthrough", err)
	}
}

func TestNew_DefaultBudgets(t *testing.T) {
	s := New(nil, config.ImportConfig{})
	if s.txMaxWait != 2*time.Minute || s.txTimeout != 10*time.Minute {
		t.Errorf("budgets = %s/%s, want 2m/10m", s.txMaxWait, s.txTimeout)
	}

	s = New(nil, config.ImportConfig{TxMaxWait: time.Second, TxTimeout: time.Minute})
	if s.txMaxWait != time.Second || s.txTimeout != time.Minute {
		t.Errorf("budgets = %s/%s, want 1s/1m", s.txMaxWait, s.txTimeout)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"students", "exam_attempts", "exam_scores", "import_runs", "student_achievements"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
}
