package core

import (
	"time"

	"github.com/JonMunkholm/examimport/internal/layout"
)

// ValidationStatus is the per-row disposition shown to the reviewer.
type ValidationStatus string

const (
	StatusInvalidNumber   ValidationStatus = "invalid_number"
	StatusDuplicateInFile ValidationStatus = "duplicate_in_file"
	StatusDuplicateInExam ValidationStatus = "duplicate_in_exam"
	StatusNotRegistered   ValidationStatus = "not_registered"
	StatusValid           ValidationStatus = "valid"
)

// LessonResult is one lesson's correct/incorrect/net triple for a student.
type LessonResult struct {
	Name      string  `json:"name"`
	Correct   float64 `json:"correct"`
	Incorrect float64 `json:"incorrect"`
	Net       float64 `json:"net"`
	Point     float64 `json:"point"`
}

// Score is a score value for one score type (e.g. "TYT", "SAY").
type Score struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Rank is a rank value under a layout label (e.g. "Sınıf", "SAY Okul").
// Zero means the sheet left the cell blank.
type Rank struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// ParsedRow is one student row read from a result sheet.
//
// Lessons, Scores and Ranks keep the order of the layout's column map.
// ErrorReasons only ever grows; later stages append, they never replace.
type ParsedRow struct {
	Line          int    `json:"line"` // 1-based sheet row
	StudentNumber string `json:"studentNumber"`
	Name          string `json:"name,omitempty"`
	Class         string `json:"class,omitempty"`
	Grade         string `json:"grade,omitempty"`
	Branch        string `json:"branch,omitempty"`
	NationalID    string `json:"nationalId,omitempty"`

	Lessons []LessonResult `json:"lessons"`
	Scores  []Score        `json:"scores"`
	Ranks   []Rank         `json:"ranks"`

	IsValid          bool             `json:"isValid"`
	ErrorReasons     []string         `json:"errorReason"`
	ValidationStatus ValidationStatus `json:"validationStatus"`

	// Skip is set by the reviewer to leave a row out of the import.
	Skip bool `json:"skip,omitempty"`
}

// hasResults reports whether the parser read lesson results for the row.
// Rows it rejected carry none.
func (r *ParsedRow) hasResults() bool {
	return len(r.Lessons) > 0
}

func (r *ParsedRow) addReason(reason string) {
	r.ErrorReasons = append(r.ErrorReasons, reason)
}

func (r *ParsedRow) markInvalid(status ValidationStatus, reason string) {
	r.IsValid = false
	r.ValidationStatus = status
	r.addReason(reason)
}

// RankValue returns the rank stored under label, if the sheet had one.
func (r *ParsedRow) RankValue(label string) (int, bool) {
	for _, rk := range r.Ranks {
		if rk.Label == label {
			return rk.Value, rk.Value > 0
		}
	}
	return 0, false
}

// Format is the detected layout of a sheet.
type Format struct {
	ExamType layout.ExamType  `json:"examType"`
	Variant  layout.Variant   `json:"variant"`
	Map      layout.ColumnMap `json:"-"`
	Columns  int              `json:"columns"`
}

// ValidateSummary counts rows per disposition.
type ValidateSummary struct {
	Total           int `json:"total"`
	Valid           int `json:"valid"`
	NotRegistered   int `json:"notRegistered"`
	DuplicateInExam int `json:"duplicateInExam"`
	DuplicateInFile int `json:"duplicateInFile"`
	InvalidNumber   int `json:"invalidNumber"`
}

// ValidateResult is returned by the validate phase. It carries every row,
// including the invalid ones; the caller decides what to show and select.
type ValidateResult struct {
	Format           Format          `json:"format"`
	Rows             []ParsedRow     `json:"rows"`
	Summary          ValidateSummary `json:"summary"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
}

// ConfirmRequest is the reviewed row set handed to the confirm phase.
type ConfirmRequest struct {
	Rows     []ParsedRow     `json:"rows"`
	ExamID   string          `json:"examId"`
	SchoolID string          `json:"schoolId"`
	ExamType layout.ExamType `json:"examType"`
	FileName string          `json:"fileName,omitempty"`

	// UpdateExisting admits duplicate_in_exam rows as updates of the existing
	// attempt. When false they are skipped.
	UpdateExisting bool `json:"updateExisting,omitempty"`
}

// ConfirmResult summarizes a committed import.
type ConfirmResult struct {
	Success         bool          `json:"success"`
	Count           int           `json:"count"`
	Skipped         int           `json:"skipped"`
	CreatedStudents int           `json:"createdStudents"`
	UpdatedAttempts int           `json:"updatedAttempts"`
	AttemptIDs      []string      `json:"attemptIds"`
	ImportRunID     string        `json:"importRunId"`
	Duration        time.Duration `json:"duration"`
}

// Roles assigned to accounts created during import.
const (
	RoleStudent = "student"
	RoleParent  = "parent"
)

// Exam is the exam a sheet is imported into.
type Exam struct {
	ID       string
	SchoolID string
	Name     string
	Type     layout.ExamType
}

// Grade is a school year level ("9", "12").
type Grade struct {
	ID       string
	Name     string
	SchoolID string
}

// Class is a section within a grade ("12-B").
type Class struct {
	ID       string
	Name     string
	GradeID  string
	SchoolID string
}

// User is a login account. Imported accounts have no email; they sign in
// with the student number.
type User struct {
	ID           string
	Email        *string
	PasswordHash string
	Name         string
	Role         string
	SchoolID     string
}

// Parent links a parent account to its students.
type Parent struct {
	ID     string
	UserID string
}

// Student is a registered student. Name is read from the linked user.
type Student struct {
	ID            string
	StudentNumber string
	UserID        string
	ClassID       string
	ParentID      string
	NationalID    string
	SchoolID      string
	Name          string
}

// Lesson is a subject scoped to an exam type and school.
type Lesson struct {
	ID       string
	Name     string
	ExamType layout.ExamType
	SchoolID string
}

// Attempt is one student's participation in one exam.
type Attempt struct {
	ID        string
	ExamID    string
	StudentID string
}

// LessonResultRecord is a persisted lesson result.
type LessonResultRecord struct {
	AttemptID string
	LessonID  string
	Correct   int
	Incorrect int
	Net       float64
	Point     float64
}

// ScoreRecord is a persisted score with its rank fields. Zero ranks are
// stored as NULL.
type ScoreRecord struct {
	AttemptID    string
	Type         string
	Score        float64
	ClassRank    int
	SchoolRank   int
	DistrictRank int
	CityRank     int
}

// ImportRun is the history record written with every committed import.
type ImportRun struct {
	ID              string
	ExamID          string
	SchoolID        string
	FileName        string
	RowsImported    int
	RowsSkipped     int
	CreatedStudents int
	IPAddress       string
	UserAgent       string
	Duration        time.Duration
}

// UnlockedAchievement is an achievement awarded after an import.
type UnlockedAchievement struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
