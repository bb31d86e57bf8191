package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repository lookups that match no row.
var ErrNotFound = errors.New("not found")

// Registry answers the read-only questions the validation phase asks.
// Each method is called once per validation, never per row.
type Registry interface {
	// AttemptStudentNumbers lists student numbers already holding an
	// attempt for the exam.
	AttemptStudentNumbers(ctx context.Context, examID string) ([]string, error)

	// SchoolStudentNumbers lists every student number registered in the school.
	SchoolStudentNumbers(ctx context.Context, schoolID string) ([]string, error)
}

// Tx is the repository available inside the import transaction.
// Find* methods return ErrNotFound when nothing matches.
type Tx interface {
	GetExam(ctx context.Context, examID string) (Exam, error)

	FindGrade(ctx context.Context, schoolID, name string) (Grade, error)
	CreateGrade(ctx context.Context, g Grade) (Grade, error)
	FindClass(ctx context.Context, schoolID, gradeID, name string) (Class, error)
	CreateClass(ctx context.Context, c Class) (Class, error)

	FindStudent(ctx context.Context, schoolID, studentNumber string) (Student, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUserName(ctx context.Context, userID, name string) error
	CreateParent(ctx context.Context, p Parent) (Parent, error)
	CreateStudent(ctx context.Context, s Student) (Student, error)
	UpdateStudentNationalID(ctx context.Context, studentID, nationalID string) error

	// UpsertAttempt returns the attempt for (examID, studentID), creating it
	// when absent. created reports whether a new row was inserted.
	UpsertAttempt(ctx context.Context, examID, studentID string) (a Attempt, created bool, err error)

	FindLesson(ctx context.Context, schoolID, examType, name string) (Lesson, error)
	CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
	DeleteLessonResults(ctx context.Context, attemptID string) error
	InsertLessonResult(ctx context.Context, r LessonResultRecord) error
	DeleteScores(ctx context.Context, attemptID string) error
	InsertScore(ctx context.Context, s ScoreRecord) error

	InsertImportRun(ctx context.Context, run ImportRun) error
}

// Store is the persistence boundary of the import pipeline.
type Store interface {
	Registry

	// InTx runs fn inside one database transaction. The transaction commits
	// only if fn returns nil; any error or panic rolls everything back. fn must
	// use the context it is given, which carries the transaction deadline.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// AchievementChecker evaluates achievements for one attempt after an import
// has committed.
type AchievementChecker interface {
	CheckAchievementsForExam(ctx context.Context, attemptID string) ([]UnlockedAchievement, error)
}
