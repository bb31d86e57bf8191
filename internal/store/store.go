// Package store is the PostgreSQL implementation of the import pipeline's
// persistence boundary.
//
// Store answers the read-only registry questions asked during validation and
// runs the confirm phase inside a single transaction. The transaction has two
// budgets taken from configuration: how long to wait for a pooled connection,
// and how long the transaction may live once started.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/examimport/internal/config"
	"github.com/JonMunkholm/examimport/internal/core"
	"github.com/JonMunkholm/examimport/internal/logging"
)

// ErrTxWaitExceeded is returned when no connection became available within
// the transaction wait budget.
var ErrTxWaitExceeded = errors.New("timed out waiting for a database connection")

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements core.Store over a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	txMaxWait time.Duration
	txTimeout time.Duration
}

var _ core.Store = (*Store)(nil)

// New creates a store. Zero budgets fall back to the config defaults.
func New(pool *pgxpool.Pool, cfg config.ImportConfig) *Store {
	s := &Store{pool: pool, txMaxWait: cfg.TxMaxWait, txTimeout: cfg.TxTimeout}
	if s.txMaxWait <= 0 {
		s.txMaxWait = 2 * time.Minute
	}
	if s.txTimeout <= 0 {
		s.txTimeout = 10 * time.Minute
	}
	return s
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// AttemptStudentNumbers lists student numbers that already hold an attempt
// for the exam.
func (s *Store) AttemptStudentNumbers(ctx context.Context, examID string) ([]string, error) {
	return collectStrings(ctx, s.pool, `
		SELECT st.student_number
		FROM exam_attempts a
		JOIN students st ON st.id = a.student_id
		WHERE a.exam_id = $1`, ToPgUUID(examID))
}

// SchoolStudentNumbers lists every student number registered in the school.
func (s *Store) SchoolStudentNumbers(ctx context.Context, schoolID string) ([]string, error) {
	return collectStrings(ctx, s.pool,
		`SELECT student_number FROM students WHERE school_id = $1`, ToPgUUID(schoolID))
}

// InTx runs fn in one transaction.
//
// The connection wait is bounded by the caller's context and txMaxWait. Once a
// connection is held, the transaction ignores caller cancellation and is
// bounded by txTimeout alone. statement_timeout applies the same budget on the
// server.
func (s *Store) InTx(ctx context.Context, fn func(context.Context, core.Tx) error) (err error) {
	log := logging.FromContext(ctx)

	waitCtx, cancelWait := context.WithTimeout(ctx, s.txMaxWait)
	conn, err := s.pool.Acquire(waitCtx)
	cancelWait()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrTxWaitExceeded, s.txMaxWait)
		}
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	tx, err := conn.Begin(txCtx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(txCtx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	if _, err = tx.Exec(txCtx, fmt.Sprintf("SET LOCAL statement_timeout = %d", s.txTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set statement timeout: %w", err)
	}

	if err = fn(txCtx, NewQueries(tx)); err != nil {
		return err
	}

	if err = tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func collectStrings(ctx context.Context, db DBTX, query string, args ...interface{}) ([]string, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return out, nil
}
