package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

// fakeState is the in-memory database behind fakeStore. Everything is held by
// value so clone gives InTx a cheap rollback snapshot.
type fakeState struct {
	exams         []Exam
	grades        []Grade
	classes       []Class
	users         []User
	parents       []Parent
	students      []Student
	lessons       []Lesson
	attempts      []Attempt
	lessonResults []LessonResultRecord
	scores        []ScoreRecord
	runs          []ImportRun
}

func (s fakeState) clone() fakeState {
	return fakeState{
		exams:         append([]Exam(nil), s.exams...),
		grades:        append([]Grade(nil), s.grades...),
		classes:       append([]Class(nil), s.classes...),
		users:         append([]User(nil), s.users...),
		parents:       append([]Parent(nil), s.parents...),
		students:      append([]Student(nil), s.students...),
		lessons:       append([]Lesson(nil), s.lessons...),
		attempts:      append([]Attempt(nil), s.attempts...),
		lessonResults: append([]LessonResultRecord(nil), s.lessonResults...),
		scores:        append([]ScoreRecord(nil), s.scores...),
		runs:          append([]ImportRun(nil), s.runs...),
	}
}

// fakeStore implements Store in memory with all-or-nothing transactions.
type fakeStore struct {
	mu      sync.Mutex
	state   fakeState
	seq     int
	failOn  map[string]error // Tx method name -> injected error
	commits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: make(map[string]error)}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) addExam(e Exam) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.exams = append(f.state.exams, e)
}

// addStudent seeds a registered student with its user, parent and class.
func (f *fakeStore) addStudent(schoolID, number, name, className string) Student {
	f.mu.Lock()
	defer f.mu.Unlock()

	grade, branch, _ := SplitClassLabel(className)
	g := Grade{ID: f.nextID("grade"), Name: grade, SchoolID: schoolID}
	c := Class{ID: f.nextID("class"), Name: ClassName(grade, branch), GradeID: g.ID, SchoolID: schoolID}
	u := User{ID: f.nextID("user"), Name: name, Role: RoleStudent, SchoolID: schoolID}
	p := Parent{ID: f.nextID("parent"), UserID: u.ID}
	st := Student{
		ID:            f.nextID("student"),
		StudentNumber: number,
		UserID:        u.ID,
		ClassID:       c.ID,
		ParentID:      p.ID,
		SchoolID:      schoolID,
		Name:          name,
	}
	f.state.grades = append(f.state.grades, g)
	f.state.classes = append(f.state.classes, c)
	f.state.users = append(f.state.users, u)
	f.state.parents = append(f.state.parents, p)
	f.state.students = append(f.state.students, st)
	return st
}

func (f *fakeStore) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

func (f *fakeStore) AttemptStudentNumbers(_ context.Context, examID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.state.attempts {
		if a.ExamID != examID {
			continue
		}
		for _, s := range f.state.students {
			if s.ID == a.StudentID {
				out = append(out, s.StudentNumber)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SchoolStudentNumbers(_ context.Context, schoolID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.state.students {
		if s.SchoolID == schoolID {
			out = append(out, s.StudentNumber)
		}
	}
	return out, nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := f.state.clone()
	committed := false
	defer func() {
		if !committed {
			f.state = snapshot
		}
	}()

	if err := fn(ctx, &fakeTx{f: f}); err != nil {
		return err
	}
	committed = true
	f.commits++
	return nil
}

// fakeTx runs inside InTx, which holds the store lock.
type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) fail(method string) error {
	return t.f.failOn[method]
}

func (t *fakeTx) GetExam(_ context.Context, examID string) (Exam, error) {
	for _, e := range t.f.state.exams {
		if e.ID == examID {
			return e, nil
		}
	}
	return Exam{}, ErrNotFound
}

func (t *fakeTx) FindGrade(_ context.Context, schoolID, name string) (Grade, error) {
	for _, g := range t.f.state.grades {
		if g.SchoolID == schoolID && g.Name == name {
			return g, nil
		}
	}
	return Grade{}, ErrNotFound
}

func (t *fakeTx) CreateGrade(_ context.Context, g Grade) (Grade, error) {
	if err := t.fail("CreateGrade"); err != nil {
		return Grade{}, err
	}
	g.ID = t.f.nextID("grade")
	t.f.state.grades = append(t.f.state.grades, g)
	return g, nil
}

func (t *fakeTx) FindClass(_ context.Context, schoolID, gradeID, name string) (Class, error) {
	for _, c := range t.f.state.classes {
		if c.SchoolID == schoolID && c.GradeID == gradeID && c.Name == name {
			return c, nil
		}
	}
	return Class{}, ErrNotFound
}

func (t *fakeTx) CreateClass(_ context.Context, c Class) (Class, error) {
	c.ID = t.f.nextID("class")
	t.f.state.classes = append(t.f.state.classes, c)
	return c, nil
}

func (t *fakeTx) FindStudent(_ context.Context, schoolID, number string) (Student, error) {
	for _, s := range t.f.state.students {
		if s.SchoolID == schoolID && s.StudentNumber == number {
			for _, u := range t.f.state.users {
				if u.ID == s.UserID {
					s.Name = u.Name
				}
			}
			return s, nil
		}
	}
	return Student{}, ErrNotFound
}

func (t *fakeTx) CreateUser(_ context.Context, u User) (User, error) {
	u.ID = t.f.nextID("user")
	t.f.state.users = append(t.f.state.users, u)
	return u, nil
}

func (t *fakeTx) UpdateUserName(_ context.Context, userID, name string) error {
	for i := range t.f.state.users {
		if t.f.state.users[i].ID == userID {
			t.f.state.users[i].Name = name
			return nil
		}
	}
	return ErrNotFound
}

func (t *fakeTx) CreateParent(_ context.Context, p Parent) (Parent, error) {
	p.ID = t.f.nextID("parent")
	t.f.state.parents = append(t.f.state.parents, p)
	return p, nil
}

func (t *fakeTx) CreateStudent(_ context.Context, s Student) (Student, error) {
	for _, existing := range t.f.state.students {
		if existing.SchoolID == s.SchoolID && existing.StudentNumber == s.StudentNumber {
			return Student{}, errors.New("duplicate key value violates unique constraint \"students_number_school_key\"")
		}
	}
	s.ID = t.f.nextID("student")
	t.f.state.students = append(t.f.state.students, s)
	return s, nil
}

func (t *fakeTx) UpdateStudentNationalID(_ context.Context, studentID, nationalID string) error {
	for i := range t.f.state.students {
		if t.f.state.students[i].ID == studentID {
			t.f.state.students[i].NationalID = nationalID
			return nil
		}
	}
	return ErrNotFound
}

func (t *fakeTx) UpsertAttempt(_ context.Context, examID, studentID string) (Attempt, bool, error) {
	for _, a := range t.f.state.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			return a, false, nil
		}
	}
	a := Attempt{ID: t.f.nextID("attempt"), ExamID: examID, StudentID: studentID}
	t.f.state.attempts = append(t.f.state.attempts, a)
	return a, true, nil
}

func (t *fakeTx) FindLesson(_ context.Context, schoolID, examType, name string) (Lesson, error) {
	for _, l := range t.f.state.lessons {
		if l.SchoolID == schoolID && string(l.ExamType) == examType && l.Name == name {
			return l, nil
		}
	}
	return Lesson{}, ErrNotFound
}

func (t *fakeTx) CreateLesson(_ context.Context, l Lesson) (Lesson, error) {
	l.ID = t.f.nextID("lesson")
	t.f.state.lessons = append(t.f.state.lessons, l)
	return l, nil
}

func (t *fakeTx) DeleteLessonResults(_ context.Context, attemptID string) error {
	kept := t.f.state.lessonResults[:0:0]
	for _, r := range t.f.state.lessonResults {
		if r.AttemptID != attemptID {
			kept = append(kept, r)
		}
	}
	t.f.state.lessonResults = kept
	return nil
}

func (t *fakeTx) InsertLessonResult(_ context.Context, r LessonResultRecord) error {
	t.f.state.lessonResults = append(t.f.state.lessonResults, r)
	return nil
}

func (t *fakeTx) DeleteScores(_ context.Context, attemptID string) error {
	kept := t.f.state.scores[:0:0]
	for _, s := range t.f.state.scores {
		if s.AttemptID != attemptID {
			kept = append(kept, s)
		}
	}
	t.f.state.scores = kept
	return nil
}

func (t *fakeTx) InsertScore(_ context.Context, s ScoreRecord) error {
	if err := t.fail("InsertScore"); err != nil {
		return err
	}
	t.f.state.scores = append(t.f.state.scores, s)
	return nil
}

func (t *fakeTx) InsertImportRun(_ context.Context, run ImportRun) error {
	t.f.state.runs = append(t.f.state.runs, run)
	return nil
}

// fakeChecker records achievement checks. Attempts listed in fail return an
// error; attempts listed in panics panic.
type fakeChecker struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]bool
	panics map[string]bool
}

func (c *fakeChecker) CheckAchievementsForExam(_ context.Context, attemptID string) ([]UnlockedAchievement, error) {
	c.mu.Lock()
	c.calls = append(c.calls, attemptID)
	c.mu.Unlock()

	if c.panics[attemptID] {
		panic("checker exploded")
	}
	if c.fail[attemptID] {
		return nil, errors.New("achievement store unavailable")
	}
	return []UnlockedAchievement{{Code: "first_exam", Name: "İlk Sınav"}}, nil
}

func (c *fakeChecker) called() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// ----------------------------------------------------------------------------
// Sheet builders
// ----------------------------------------------------------------------------

// filledRow returns n non-empty cells starting with first.
func filledRow(first string, n int) []string {
	row := make([]string, n)
	for i := range row {
		row[i] = fmt.Sprintf("c%d", i)
	}
	if n > 0 {
		row[0] = first
	}
	return row
}

// rawHeaders returns the two header rows of a raw layout.
func rawHeaders(m layout.ColumnMap) [][]string {
	return [][]string{
		filledRow("Öğrenci No", m.ExpectedColumns),
		filledRow("", m.ExpectedColumns),
	}
}

// lgsRow builds a 30-column LGS data row. Every lesson reads 10 correct,
// 2 incorrect, 9,5 net; score 412,5; ranks 3, 12/340, 40, 100, 2000.
func lgsRow(number, name, class string) []string {
	row := make([]string, 30)
	row[0], row[1], row[2] = number, name, class
	for c := 3; c <= 20; c += 3 {
		row[c], row[c+1], row[c+2] = "10", "2", "9,5"
	}
	row[21], row[22], row[23] = "60", "12", "57"
	row[24] = "412,5"
	row[25], row[26], row[27], row[28], row[29] = "3", "12/340", "40", "100", "2000"
	return row
}

func lgsSheet(rows ...[]string) *sheet.Sheet {
	m, _ := layout.Lookup(layout.LGS, layout.Raw)
	all := append(rawHeaders(m), rows...)
	return sheet.FromRows("LGS", all)
}

// buildWorkbook renders rows into an in-memory xlsx file.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
