package core

// reconcile.go commits a reviewed row set into the school's data model.
//
// The whole batch runs in one transaction. Rows are processed one after the
// other because every step is find-or-create: two rows naming "Grade 9" must
// see each other's insert. Any error rolls the batch back.
//
// Per row:
//  1. find the student by (number, school), or create user, parent user,
//     parent and student (resolving grade and class first)
//  2. upsert the attempt for (exam, student)
//  3. replace the attempt's lesson results
//  4. replace the attempt's scores and ranks
//
// Post-commit hooks run once per touched attempt after the transaction is
// gone; their failures are logged and never reach the caller.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/logging"
)

var (
	// ErrExamNotFound is returned when the target exam does not exist in the school.
	ErrExamNotFound = errors.New("exam not found")

	// ErrNothingToImport is returned when no row survives admission.
	ErrNothingToImport = errors.New("no rows selected for import")

	// ErrClassUnresolved is returned when a new student's class label cannot
	// be split into grade and branch.
	ErrClassUnresolved = errors.New("class could not be resolved")
)

// Reconciler writes confirmed rows through a Store.
type Reconciler struct {
	store           Store
	defaultPassword string
	bcryptCost      int
	hooks           *hookRunner
}

// NewReconciler creates a reconciler. Accounts created during import receive
// defaultPassword hashed with bcrypt at the given cost.
func NewReconciler(store Store, defaultPassword string, bcryptCost int, hooks ...PostCommitHook) *Reconciler {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Reconciler{
		store:           store,
		defaultPassword: defaultPassword,
		bcryptCost:      bcryptCost,
		hooks:           newHookRunner(hooks, DefaultHookWorkers, DefaultHookTimeout),
	}
}

// SetHookLimits adjusts post-commit concurrency and per-hook timeout.
func (r *Reconciler) SetHookLimits(workers int, timeout time.Duration) {
	r.hooks = newHookRunner(r.hooks.hooks, workers, timeout)
}

// Confirm imports the admissible rows of req in one transaction.
func (r *Reconciler) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "exam_id", req.ExamID, "school_id", req.SchoolID)

	// Rows are only ever written to an exam of the type they were parsed as.
	examType, err := layout.ParseExamType(string(req.ExamType))
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("confirm: %w", err)
	}

	rows, skipped := admitRows(req.Rows, req.UpdateExisting)
	if len(rows) == 0 {
		return ConfirmResult{}, fmt.Errorf("%w: %d rows skipped", ErrNothingToImport, skipped)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.defaultPassword), r.bcryptCost)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("hash default password: %w", err)
	}

	result := ConfirmResult{Skipped: skipped}
	var attemptIDs []string

	err = r.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		exam, err := tx.GetExam(ctx, req.ExamID)
		if errors.Is(err, ErrNotFound) || (err == nil && exam.SchoolID != req.SchoolID) {
			return fmt.Errorf("%w: %s", ErrExamNotFound, req.ExamID)
		}
		if err != nil {
			return fmt.Errorf("load exam: %w", err)
		}
		if examType != exam.Type {
			return fmt.Errorf("%w: exam %s is %s but the rows are %s", ErrExamTypeMismatch, exam.ID, exam.Type, examType)
		}

		sess := newImportSession(tx, exam, string(hash))
		for i := range rows {
			row := &rows[i]
			out, err := sess.importRow(ctx, row)
			if err != nil {
				return fmt.Errorf("row %d (student %s): %w", row.Line, row.StudentNumber, err)
			}
			if out.studentCreated {
				result.CreatedStudents++
			}
			if !out.attemptCreated {
				result.UpdatedAttempts++
			}
			attemptIDs = appendUnique(attemptIDs, out.attemptID)
		}

		run := ImportRun{
			ID:              uuid.NewString(),
			ExamID:          exam.ID,
			SchoolID:        req.SchoolID,
			FileName:        req.FileName,
			RowsImported:    len(rows),
			RowsSkipped:     skipped,
			CreatedStudents: result.CreatedStudents,
			IPAddress:       GetIPAddressFromContext(ctx),
			UserAgent:       GetUserAgentFromContext(ctx),
			Duration:        time.Since(start),
		}
		if err := tx.InsertImportRun(ctx, run); err != nil {
			return fmt.Errorf("record import run: %w", err)
		}
		result.ImportRunID = run.ID
		return nil
	})
	if err != nil {
		log.Error("import rolled back", "rows", len(rows), "error", err)
		return ConfirmResult{}, err
	}

	result.Success = true
	result.Count = len(rows)
	result.AttemptIDs = attemptIDs
	result.Duration = time.Since(start)

	log.Info("import committed",
		"rows", result.Count,
		"skipped", result.Skipped,
		"created_students", result.CreatedStudents,
		"updated_attempts", result.UpdatedAttempts,
		"duration_ms", result.Duration.Milliseconds(),
	)

	r.hooks.run(ctx, attemptIDs)
	return result, nil
}

// admitRows selects the rows to import. Reviewer-skipped rows and rows
// without lesson results are dropped. Valid and not-registered rows are
// admitted, duplicate_in_exam rows only when updateExisting is set. A
// student number is imported at most once.
func admitRows(rows []ParsedRow, updateExisting bool) ([]ParsedRow, int) {
	admitted := make([]ParsedRow, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	skipped := 0

	for _, row := range rows {
		ok := !row.Skip && row.hasResults() &&
			(row.IsValid || (updateExisting && row.ValidationStatus == StatusDuplicateInExam))
		number := NormalizeStudentNumber(row.StudentNumber)
		if !ok || !ValidStudentNumber(number) || seen[number] {
			skipped++
			continue
		}
		seen[number] = true
		row.StudentNumber = number
		admitted = append(admitted, row)
	}
	return admitted, skipped
}

// importSession carries per-transaction lookups so repeated grades, classes
// and lessons hit the database once.
type importSession struct {
	tx           Tx
	exam         Exam
	passwordHash string

	grades  map[string]string // grade name -> id
	classes map[string]string // grade id + "/" + class name -> id
	lessons map[string]string // lesson name -> id
}

func newImportSession(tx Tx, exam Exam, passwordHash string) *importSession {
	return &importSession{
		tx:           tx,
		exam:         exam,
		passwordHash: passwordHash,
		grades:       make(map[string]string),
		classes:      make(map[string]string),
		lessons:      make(map[string]string),
	}
}

type rowOutcome struct {
	attemptID      string
	studentCreated bool
	attemptCreated bool
}

func (s *importSession) importRow(ctx context.Context, row *ParsedRow) (rowOutcome, error) {
	var out rowOutcome

	student, created, err := s.resolveStudent(ctx, row)
	if err != nil {
		return out, err
	}
	out.studentCreated = created

	attempt, attemptCreated, err := s.tx.UpsertAttempt(ctx, s.exam.ID, student.ID)
	if err != nil {
		return out, fmt.Errorf("upsert attempt: %w", err)
	}
	out.attemptID = attempt.ID
	out.attemptCreated = attemptCreated

	if err := s.replaceLessonResults(ctx, attempt.ID, row.Lessons); err != nil {
		return out, err
	}
	if err := s.replaceScores(ctx, attempt.ID, row); err != nil {
		return out, err
	}
	return out, nil
}

func (s *importSession) resolveStudent(ctx context.Context, row *ParsedRow) (Student, bool, error) {
	st, err := s.tx.FindStudent(ctx, s.exam.SchoolID, row.StudentNumber)
	switch {
	case err == nil:
		return st, false, s.refreshStudent(ctx, st, row)
	case !errors.Is(err, ErrNotFound):
		return Student{}, false, fmt.Errorf("find student: %w", err)
	}

	classID, err := s.resolveClass(ctx, row)
	if err != nil {
		return Student{}, false, err
	}

	name := row.Name
	if isPlaceholderName(name) {
		name = placeholderNamePrefix + row.StudentNumber
	}

	user, err := s.tx.CreateUser(ctx, User{
		PasswordHash: s.passwordHash,
		Name:         name,
		Role:         RoleStudent,
		SchoolID:     s.exam.SchoolID,
	})
	if err != nil {
		return Student{}, false, fmt.Errorf("create student user: %w", err)
	}

	parentUser, err := s.tx.CreateUser(ctx, User{
		PasswordHash: s.passwordHash,
		Name:         name + " Velisi",
		Role:         RoleParent,
		SchoolID:     s.exam.SchoolID,
	})
	if err != nil {
		return Student{}, false, fmt.Errorf("create parent user: %w", err)
	}

	parent, err := s.tx.CreateParent(ctx, Parent{UserID: parentUser.ID})
	if err != nil {
		return Student{}, false, fmt.Errorf("create parent: %w", err)
	}

	st, err = s.tx.CreateStudent(ctx, Student{
		StudentNumber: row.StudentNumber,
		UserID:        user.ID,
		ClassID:       classID,
		ParentID:      parent.ID,
		NationalID:    row.NationalID,
		SchoolID:      s.exam.SchoolID,
		Name:          name,
	})
	if err != nil {
		return Student{}, false, fmt.Errorf("create student: %w", err)
	}
	return st, true, nil
}

// refreshStudent updates the name and national ID of an existing student.
// The class is left alone.
func (s *importSession) refreshStudent(ctx context.Context, st Student, row *ParsedRow) error {
	if !isPlaceholderName(row.Name) && row.Name != st.Name {
		if err := s.tx.UpdateUserName(ctx, st.UserID, row.Name); err != nil {
			return fmt.Errorf("update student name: %w", err)
		}
	}
	if row.NationalID != "" && row.NationalID != st.NationalID {
		if err := s.tx.UpdateStudentNationalID(ctx, st.ID, row.NationalID); err != nil {
			return fmt.Errorf("update national id: %w", err)
		}
	}
	return nil
}

// classParts derives grade and branch for a row. A parseable class label wins
// over the split fields, since reviewers edit the label.
func classParts(row *ParsedRow) (grade, branch string, ok bool) {
	if grade, branch, ok := SplitClassLabel(row.Class); ok {
		return grade, branch, true
	}
	if row.Grade == "" {
		return "", "", false
	}
	if g, _, ok := SplitClassLabel(row.Grade); ok {
		return g, upperTR.String(row.Branch), true
	}
	return "", "", false
}

func (s *importSession) resolveClass(ctx context.Context, row *ParsedRow) (string, error) {
	gradeName, branch, ok := classParts(row)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrClassUnresolved, row.Class)
	}

	gradeID, err := s.resolveGrade(ctx, gradeName)
	if err != nil {
		return "", err
	}

	name := ClassName(gradeName, branch)
	key := gradeID + "/" + name
	if id, ok := s.classes[key]; ok {
		return id, nil
	}

	class, err := s.tx.FindClass(ctx, s.exam.SchoolID, gradeID, name)
	if errors.Is(err, ErrNotFound) {
		class, err = s.tx.CreateClass(ctx, Class{Name: name, GradeID: gradeID, SchoolID: s.exam.SchoolID})
	}
	if err != nil {
		return "", fmt.Errorf("resolve class %s: %w", name, err)
	}
	s.classes[key] = class.ID
	return class.ID, nil
}

func (s *importSession) resolveGrade(ctx context.Context, name string) (string, error) {
	if id, ok := s.grades[name]; ok {
		return id, nil
	}
	g, err := s.tx.FindGrade(ctx, s.exam.SchoolID, name)
	if errors.Is(err, ErrNotFound) {
		g, err = s.tx.CreateGrade(ctx, Grade{Name: name, SchoolID: s.exam.SchoolID})
	}
	if err != nil {
		return "", fmt.Errorf("resolve grade %s: %w", name, err)
	}
	s.grades[name] = g.ID
	return g.ID, nil
}

func (s *importSession) resolveLesson(ctx context.Context, name string) (string, error) {
	if id, ok := s.lessons[name]; ok {
		return id, nil
	}
	l, err := s.tx.FindLesson(ctx, s.exam.SchoolID, string(s.exam.Type), name)
	if errors.Is(err, ErrNotFound) {
		l, err = s.tx.CreateLesson(ctx, Lesson{Name: name, ExamType: s.exam.Type, SchoolID: s.exam.SchoolID})
	}
	if err != nil {
		return "", fmt.Errorf("resolve lesson %s: %w", name, err)
	}
	s.lessons[name] = l.ID
	return l.ID, nil
}

func (s *importSession) replaceLessonResults(ctx context.Context, attemptID string, lessons []LessonResult) error {
	if err := s.tx.DeleteLessonResults(ctx, attemptID); err != nil {
		return fmt.Errorf("clear lesson results: %w", err)
	}
	for _, l := range lessons {
		lessonID, err := s.resolveLesson(ctx, l.Name)
		if err != nil {
			return err
		}
		err = s.tx.InsertLessonResult(ctx, LessonResultRecord{
			AttemptID: attemptID,
			LessonID:  lessonID,
			Correct:   int(math.Round(l.Correct)),
			Incorrect: int(math.Round(l.Incorrect)),
			Net:       l.Net,
			Point:     l.Point,
		})
		if err != nil {
			return fmt.Errorf("insert lesson result %s: %w", l.Name, err)
		}
	}
	return nil
}

func (s *importSession) replaceScores(ctx context.Context, attemptID string, row *ParsedRow) error {
	if err := s.tx.DeleteScores(ctx, attemptID); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	for _, sc := range row.Scores {
		rec := ScoreRecord{
			AttemptID:    attemptID,
			Type:         sc.Type,
			Score:        sc.Value,
			ClassRank:    rankFor(row, s.exam.Type, sc.Type, classRankLabels),
			SchoolRank:   rankFor(row, s.exam.Type, sc.Type, schoolRankLabels),
			DistrictRank: rankFor(row, s.exam.Type, sc.Type, districtRankLabels),
			CityRank:     rankFor(row, s.exam.Type, sc.Type, cityRankLabels),
		}
		if err := s.tx.InsertScore(ctx, rec); err != nil {
			return fmt.Errorf("insert score %s: %w", sc.Type, err)
		}
	}
	return nil
}

// Accepted rank labels per stored rank field, tried in order.
var (
	classRankLabels    = []string{layout.RankClass, "Sınıf Sırası", "Şube"}
	schoolRankLabels   = []string{layout.RankSchool, layout.RankInst, "Okul Sırası", "Kurum Sırası"}
	districtRankLabels = []string{layout.RankDistrict, "İlçe Sırası"}
	cityRankLabels     = []string{layout.RankCity, "İl Sırası"}
)

// rankFor returns the first rank found under any of labels. Combined-score
// exams namespace their rank labels with the score type.
func rankFor(row *ParsedRow, examType layout.ExamType, scoreType string, labels []string) int {
	for _, label := range labels {
		if examType.CombinedScore() {
			label = scoreType + " " + label
		}
		if v, ok := row.RankValue(label); ok {
			return v
		}
	}
	return 0
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
