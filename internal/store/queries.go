package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/examimport/internal/core"
	"github.com/JonMunkholm/examimport/internal/layout"
)

// Queries implements core.Tx over any DBTX. Inside Store.InTx it is bound to
// the import transaction.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries over db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

var _ core.Tx = (*Queries)(nil)

// notFound maps pgx.ErrNoRows to core.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// ----------------------------------------------------------------------------
// Exams
// ----------------------------------------------------------------------------

func (q *Queries) GetExam(ctx context.Context, examID string) (core.Exam, error) {
	var (
		id, schoolID pgtype.UUID
		name, typ    string
	)
	err := q.db.QueryRow(ctx,
		`SELECT id, school_id, name, exam_type FROM exams WHERE id = $1`,
		ToPgUUID(examID),
	).Scan(&id, &schoolID, &name, &typ)
	if err != nil {
		return core.Exam{}, notFound(err)
	}
	return core.Exam{
		ID:       PgUUIDToString(id),
		SchoolID: PgUUIDToString(schoolID),
		Name:     name,
		Type:     layout.ExamType(typ),
	}, nil
}

// ----------------------------------------------------------------------------
// Grades and classes
// ----------------------------------------------------------------------------

func (q *Queries) FindGrade(ctx context.Context, schoolID, name string) (core.Grade, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`SELECT id FROM grades WHERE school_id = $1 AND name = $2`,
		ToPgUUID(schoolID), name,
	).Scan(&id)
	if err != nil {
		return core.Grade{}, notFound(err)
	}
	return core.Grade{ID: PgUUIDToString(id), Name: name, SchoolID: schoolID}, nil
}

func (q *Queries) CreateGrade(ctx context.Context, g core.Grade) (core.Grade, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`INSERT INTO grades (school_id, name) VALUES ($1, $2) RETURNING id`,
		ToPgUUID(g.SchoolID), g.Name,
	).Scan(&id)
	if err != nil {
		return core.Grade{}, err
	}
	g.ID = PgUUIDToString(id)
	return g, nil
}

func (q *Queries) FindClass(ctx context.Context, schoolID, gradeID, name string) (core.Class, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`SELECT id FROM classes WHERE school_id = $1 AND grade_id = $2 AND name = $3`,
		ToPgUUID(schoolID), ToPgUUID(gradeID), name,
	).Scan(&id)
	if err != nil {
		return core.Class{}, notFound(err)
	}
	return core.Class{ID: PgUUIDToString(id), Name: name, GradeID: gradeID, SchoolID: schoolID}, nil
}

func (q *Queries) CreateClass(ctx context.Context, c core.Class) (core.Class, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`INSERT INTO classes (school_id, grade_id, name) VALUES ($1, $2, $3) RETURNING id`,
		ToPgUUID(c.SchoolID), ToPgUUID(c.GradeID), c.Name,
	).Scan(&id)
	if err != nil {
		return core.Class{}, err
	}
	c.ID = PgUUIDToString(id)
	return c, nil
}

// ----------------------------------------------------------------------------
// Students, users and parents
// ----------------------------------------------------------------------------

func (q *Queries) FindStudent(ctx context.Context, schoolID, studentNumber string) (core.Student, error) {
	var (
		id, userID, classID, parentID pgtype.UUID
		nationalID                    pgtype.Text
		name                          string
	)
	err := q.db.QueryRow(ctx, `
		SELECT s.id, s.user_id, s.class_id, s.parent_id, s.national_id, u.name
		FROM students s
		JOIN users u ON u.id = s.user_id
		WHERE s.school_id = $1 AND s.student_number = $2`,
		ToPgUUID(schoolID), studentNumber,
	).Scan(&id, &userID, &classID, &parentID, &nationalID, &name)
	if err != nil {
		return core.Student{}, notFound(err)
	}
	return core.Student{
		ID:            PgUUIDToString(id),
		StudentNumber: studentNumber,
		UserID:        PgUUIDToString(userID),
		ClassID:       PgUUIDToString(classID),
		ParentID:      PgUUIDToString(parentID),
		NationalID:    PgTextToString(nationalID),
		SchoolID:      schoolID,
		Name:          name,
	}, nil
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, `
		INSERT INTO users (school_id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		ToPgUUID(u.SchoolID), u.Email, u.PasswordHash, u.Name, u.Role,
	).Scan(&id)
	if err != nil {
		return core.User{}, err
	}
	u.ID = PgUUIDToString(id)
	return u, nil
}

func (q *Queries) UpdateUserName(ctx context.Context, userID, name string) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET name = $2 WHERE id = $1`, ToPgUUID(userID), name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q *Queries) CreateParent(ctx context.Context, p core.Parent) (core.Parent, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`INSERT INTO parents (user_id) VALUES ($1) RETURNING id`,
		ToPgUUID(p.UserID),
	).Scan(&id)
	if err != nil {
		return core.Parent{}, err
	}
	p.ID = PgUUIDToString(id)
	return p, nil
}

func (q *Queries) CreateStudent(ctx context.Context, s core.Student) (core.Student, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, `
		INSERT INTO students (school_id, user_id, class_id, parent_id, student_number, national_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ToPgUUID(s.SchoolID), ToPgUUID(s.UserID), ToPgUUID(s.ClassID), ToPgUUID(s.ParentID),
		s.StudentNumber, ToPgText(s.NationalID),
	).Scan(&id)
	if err != nil {
		return core.Student{}, err
	}
	s.ID = PgUUIDToString(id)
	return s, nil
}

func (q *Queries) UpdateStudentNationalID(ctx context.Context, studentID, nationalID string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE students SET national_id = $2 WHERE id = $1`,
		ToPgUUID(studentID), ToPgText(nationalID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ----------------------------------------------------------------------------
// Attempts and results
// ----------------------------------------------------------------------------

// UpsertAttempt relies on the (exam_id, student_id) unique constraint.
// xmax is zero only for a freshly inserted tuple.
func (q *Queries) UpsertAttempt(ctx context.Context, examID, studentID string) (core.Attempt, bool, error) {
	var (
		id      pgtype.UUID
		created bool
	)
	err := q.db.QueryRow(ctx, `
		INSERT INTO exam_attempts (exam_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (exam_id, student_id) DO UPDATE SET updated_at = now()
		RETURNING id, (xmax = 0)`,
		ToPgUUID(examID), ToPgUUID(studentID),
	).Scan(&id, &created)
	if err != nil {
		return core.Attempt{}, false, err
	}
	return core.Attempt{ID: PgUUIDToString(id), ExamID: examID, StudentID: studentID}, created, nil
}

func (q *Queries) FindLesson(ctx context.Context, schoolID, examType, name string) (core.Lesson, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`SELECT id FROM lessons WHERE school_id = $1 AND exam_type = $2 AND name = $3`,
		ToPgUUID(schoolID), examType, name,
	).Scan(&id)
	if err != nil {
		return core.Lesson{}, notFound(err)
	}
	return core.Lesson{ID: PgUUIDToString(id), Name: name, ExamType: layout.ExamType(examType), SchoolID: schoolID}, nil
}

func (q *Queries) CreateLesson(ctx context.Context, l core.Lesson) (core.Lesson, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx,
		`INSERT INTO lessons (school_id, exam_type, name) VALUES ($1, $2, $3) RETURNING id`,
		ToPgUUID(l.SchoolID), string(l.ExamType), l.Name,
	).Scan(&id)
	if err != nil {
		return core.Lesson{}, err
	}
	l.ID = PgUUIDToString(id)
	return l, nil
}

func (q *Queries) DeleteLessonResults(ctx context.Context, attemptID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM exam_lesson_results WHERE attempt_id = $1`, ToPgUUID(attemptID))
	return err
}

func (q *Queries) InsertLessonResult(ctx context.Context, r core.LessonResultRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO exam_lesson_results (attempt_id, lesson_id, correct, incorrect, net, point)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ToPgUUID(r.AttemptID), ToPgUUID(r.LessonID), int32(r.Correct), int32(r.Incorrect), r.Net, r.Point,
	)
	return err
}

func (q *Queries) DeleteScores(ctx context.Context, attemptID string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM exam_scores WHERE attempt_id = $1`, ToPgUUID(attemptID))
	return err
}

func (q *Queries) InsertScore(ctx context.Context, s core.ScoreRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO exam_scores
			(attempt_id, score_type, score, rank_in_class, rank_in_school, rank_in_district, rank_in_city)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ToPgUUID(s.AttemptID), s.Type, s.Score,
		ToPgInt4(s.ClassRank), ToPgInt4(s.SchoolRank), ToPgInt4(s.DistrictRank), ToPgInt4(s.CityRank),
	)
	return err
}

// ----------------------------------------------------------------------------
// History
// ----------------------------------------------------------------------------

func (q *Queries) InsertImportRun(ctx context.Context, run core.ImportRun) error {
	id := ToPgUUID(run.ID)
	if !id.Valid {
		return fmt.Errorf("import run id %q is not a uuid", run.ID)
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO import_runs
			(id, exam_id, school_id, file_name, rows_imported, rows_skipped,
			 created_students, ip_address, user_agent, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, ToPgUUID(run.ExamID), ToPgUUID(run.SchoolID), ToPgText(run.FileName),
		int32(run.RowsImported), int32(run.RowsSkipped), int32(run.CreatedStudents),
		toInet(run.IPAddress), ToPgText(run.UserAgent), run.Duration.Milliseconds(),
	)
	return err
}
