package achievement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/examimport/internal/core"
	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/logging"
	"github.com/JonMunkholm/examimport/internal/store"
)

// ErrAttemptNotFound is returned when the attempt id matches no row.
var ErrAttemptNotFound = errors.New("attempt not found")

// Checker evaluates rules against attempts stored in PostgreSQL.
type Checker struct {
	db    store.DBTX
	rules []Rule
}

var _ core.AchievementChecker = (*Checker)(nil)

// NewChecker creates a checker with the default rules.
func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{db: pool, rules: DefaultRules(nil)}
}

// WithRules replaces the rule set.
func (c *Checker) WithRules(rules []Rule) *Checker {
	c.rules = rules
	return c
}

// CheckAchievementsForExam loads the attempt's facts, evaluates every rule
// the student has not earned yet and stores the new awards.
func (c *Checker) CheckAchievementsForExam(ctx context.Context, attemptID string) ([]core.UnlockedAchievement, error) {
	facts, err := c.loadFacts(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	earned, err := c.earnedCodes(ctx, facts.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load earned achievements: %w", err)
	}

	var unlocked []core.UnlockedAchievement
	for _, rule := range Evaluate(c.rules, facts, earned) {
		inserted, err := c.award(ctx, facts.StudentID, attemptID, rule.Code)
		if err != nil {
			return unlocked, fmt.Errorf("award %s: %w", rule.Code, err)
		}
		if inserted {
			unlocked = append(unlocked, core.UnlockedAchievement{Code: rule.Code, Name: rule.Name})
		}
	}

	logging.FromContext(ctx).Debug("achievements evaluated",
		"student_id", facts.StudentID,
		"unlocked", len(unlocked),
	)
	return unlocked, nil
}

func (c *Checker) loadFacts(ctx context.Context, attemptID string) (Facts, error) {
	id := store.ToPgUUID(attemptID)

	var (
		studentID   pgtype.UUID
		examType    string
		examCreated pgtype.Timestamptz
	)
	err := c.db.QueryRow(ctx, `
		SELECT a.student_id, e.exam_type, e.created_at
		FROM exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.id = $1`, id,
	).Scan(&studentID, &examType, &examCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Facts{}, fmt.Errorf("%w: %s", ErrAttemptNotFound, attemptID)
	}
	if err != nil {
		return Facts{}, fmt.Errorf("load attempt: %w", err)
	}

	f := Facts{
		StudentID: store.PgUUIDToString(studentID),
		AttemptID: attemptID,
		ExamType:  layout.ExamType(examType),
	}

	if err := c.db.QueryRow(ctx,
		`SELECT count(*) FROM exam_attempts WHERE student_id = $1`, studentID,
	).Scan(&f.AttemptCount); err != nil {
		return Facts{}, fmt.Errorf("count attempts: %w", err)
	}

	if err := c.db.QueryRow(ctx,
		`SELECT COALESCE(sum(net), 0) FROM exam_lesson_results WHERE attempt_id = $1`, id,
	).Scan(&f.TotalNet); err != nil {
		return Facts{}, fmt.Errorf("sum nets: %w", err)
	}

	f.Scores, f.BestClassRank, err = c.scores(ctx, id)
	if err != nil {
		return Facts{}, err
	}

	f.PreviousScores, _, err = c.previousScores(ctx, studentID, examType, examCreated)
	if err != nil {
		return Facts{}, err
	}
	return f, nil
}

func (c *Checker) scores(ctx context.Context, attemptID pgtype.UUID) (map[string]float64, int, error) {
	return c.collectScores(ctx, `
		SELECT score_type, score, rank_in_class
		FROM exam_scores
		WHERE attempt_id = $1`, attemptID)
}

// previousScores reads the scores of the student's latest attempt at an
// earlier exam of the same type.
func (c *Checker) previousScores(ctx context.Context, studentID pgtype.UUID, examType string, before pgtype.Timestamptz) (map[string]float64, int, error) {
	return c.collectScores(ctx, `
		WITH prev AS (
			SELECT a.id
			FROM exam_attempts a
			JOIN exams e ON e.id = a.exam_id
			WHERE a.student_id = $1 AND e.exam_type = $2 AND e.created_at < $3
			ORDER BY e.created_at DESC
			LIMIT 1
		)
		SELECT es.score_type, es.score, es.rank_in_class
		FROM exam_scores es
		JOIN prev ON prev.id = es.attempt_id`, studentID, examType, before)
}

func (c *Checker) collectScores(ctx context.Context, query string, args ...interface{}) (map[string]float64, int, error) {
	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	best := 0
	for rows.Next() {
		var (
			typ   string
			score float64
			rank  pgtype.Int4
		)
		if err := rows.Scan(&typ, &score, &rank); err != nil {
			return nil, 0, fmt.Errorf("scan score: %w", err)
		}
		scores[typ] = score
		if rank.Valid && rank.Int32 > 0 && (best == 0 || int(rank.Int32) < best) {
			best = int(rank.Int32)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("load scores: %w", err)
	}
	return scores, best, nil
}

func (c *Checker) earnedCodes(ctx context.Context, studentID string) (map[string]bool, error) {
	rows, err := c.db.Query(ctx, `
		SELECT a.code
		FROM student_achievements sa
		JOIN achievements a ON a.id = sa.achievement_id
		WHERE sa.student_id = $1`, store.ToPgUUID(studentID))
	if err != nil {
		return nil, err
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	earned := make(map[string]bool, len(codes))
	for _, code := range codes {
		earned[code] = true
	}
	return earned, nil
}

// award stores one achievement. inserted is false when the student already
// held it, which happens when two checks race.
func (c *Checker) award(ctx context.Context, studentID, attemptID, code string) (bool, error) {
	tag, err := c.db.Exec(ctx, `
		INSERT INTO student_achievements (student_id, achievement_id, attempt_id)
		SELECT $1, a.id, $3
		FROM achievements a
		WHERE a.code = $2
		ON CONFLICT (student_id, achievement_id) DO NOTHING`,
		store.ToPgUUID(studentID), code, store.ToPgUUID(attemptID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
