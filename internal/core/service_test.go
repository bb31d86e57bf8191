package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/examimport/internal/config"
	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			MaxFileSize:        1 << 20,
			MaxConcurrent:      2,
			MaxWaitTime:        50 * time.Millisecond,
			DefaultPassword:    testPassword,
			BcryptCost:         4,
			AchievementWorkers: 2,
			AchievementTimeout: time.Second,
		},
	}
}

func lgsWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	m, err := layout.Lookup(layout.LGS, layout.Raw)
	if err != nil {
		t.Fatal(err)
	}
	return buildWorkbook(t, append(rawHeaders(m), rows...))
}

func TestService_ValidateThenConfirm(t *testing.T) {
	ctx := context.Background()
	store := storeWithExam(layout.LGS)
	checker := &fakeChecker{}
	svc := NewService(store, checker, testConfig())

	data := lgsWorkbook(t,
		lgsRow("1001", "Ayşe Yılmaz", "8-A"),
		lgsRow("1001", "Ayşe Yılmaz", "8-A"),
	)

	res, err := svc.Validate(ctx, data, testExam, testSchool, layout.LGS)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Format.ExamType != layout.LGS || res.Format.Variant != layout.Raw {
		t.Errorf("Format = %+v", res.Format)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}

	first, second := res.Rows[0], res.Rows[1]
	if first.Line != 3 || first.ValidationStatus != StatusNotRegistered || !first.IsValid {
		t.Errorf("first row = %+v, want valid not_registered on line 3", first)
	}
	if second.ValidationStatus != StatusDuplicateInFile || second.IsValid {
		t.Errorf("second row = %+v, want duplicate_in_file", second)
	}
	if res.Summary.Total != 2 || res.Summary.NotRegistered != 1 || res.Summary.DuplicateInFile != 1 {
		t.Errorf("Summary = %+v", res.Summary)
	}
	if st := store.snapshot(); len(st.students) != 0 {
		t.Fatal("validate must not write")
	}

	out, err := svc.Confirm(ctx, ConfirmRequest{
		Rows:     res.Rows[:1],
		ExamID:   testExam,
		SchoolID: testSchool,
		ExamType: res.Format.ExamType,
		FileName: "deneme.xlsx",
	})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if out.Count != 1 || out.CreatedStudents != 1 {
		t.Errorf("Confirm() = %+v", out)
	}

	st := store.snapshot()
	if len(st.students) != 1 || len(st.users) != 2 || len(st.parents) != 1 || len(st.attempts) != 1 {
		t.Errorf("students=%d users=%d parents=%d attempts=%d, want 1/2/1/1",
			len(st.students), len(st.users), len(st.parents), len(st.attempts))
	}
	if got := checker.called(); len(got) != 1 || got[0] != out.AttemptIDs[0] {
		t.Errorf("achievement checks = %v, want %v", got, out.AttemptIDs)
	}

	again, err := svc.Validate(ctx, data, testExam, testSchool, "")
	if err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	if again.Rows[0].ValidationStatus != StatusDuplicateInExam {
		t.Errorf("after import status = %s, want duplicate_in_exam", again.Rows[0].ValidationStatus)
	}
}

func TestService_ValidateRejections(t *testing.T) {
	svc := NewService(storeWithExam(layout.LGS), nil, testConfig())
	ctx := context.Background()

	tests := []struct {
		name     string
		data     []byte
		declared layout.ExamType
		wantErr  error
	}{
		{"empty", nil, "", sheet.ErrEmpty},
		{"too large", make([]byte, 2<<20), "", ErrFileTooLarge},
		{"unknown width", buildWorkbook(t, [][]string{filledRow("No", 31)}), "", ErrUnrecognizedLayout},
		{"declared mismatch", lgsWorkbook(t, lgsRow("1001", "Ali", "8-A")), layout.AYT, ErrExamTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, tt.data, testExam, testSchool, tt.declared)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Revalidate(t *testing.T) {
	store := storeWithExam(layout.LGS)
	store.addStudent(testSchool, "1002", "Veli", "8-A")
	svc := NewService(store, nil, testConfig())

	row := validRow(3, "0")
	row.markInvalid(StatusInvalidNumber, "old")
	row.StudentNumber = "1002"

	res, err := svc.Revalidate(context.Background(), []ParsedRow{row}, testExam, testSchool)
	if err != nil {
		t.Fatalf("Revalidate() error = %v", err)
	}
	if res.Rows[0].ValidationStatus != StatusValid || res.Summary.Valid != 1 {
		t.Errorf("Revalidate() = %+v", res)
	}
}

func TestService_ConfirmWaitsForSlot(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxConcurrent = 1
	svc := NewService(storeWithExam(layout.LGS), nil, cfg)
	ctx := context.Background()

	if err := svc.Limiter().Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	_, err := svc.Confirm(ctx, lgsRequest(parsedLGS(t, "1001", "Ali", "8-A")))
	if !errors.Is(err, ErrTooManyImports) {
		t.Fatalf("Confirm() error = %v, want ErrTooManyImports", err)
	}

	svc.Limiter().Release()
	if _, err := svc.Confirm(ctx, lgsRequest(parsedLGS(t, "1001", "Ali", "8-A"))); err != nil {
		t.Fatalf("Confirm() after release error = %v", err)
	}
	if svc.Limiter().ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", svc.Limiter().ActiveCount())
	}
}
