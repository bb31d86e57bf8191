package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/examimport/internal/config"
	"github.com/JonMunkholm/examimport/internal/layout"
	"github.com/JonMunkholm/examimport/internal/logging"
	"github.com/JonMunkholm/examimport/internal/sheet"
)

// ErrFileTooLarge is returned when an uploaded sheet exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// Service is the two-phase import API: Validate (and Revalidate) read and
// annotate a sheet without writing anything; Confirm commits reviewed rows.
type Service struct {
	validator   *Validator
	reconciler  *Reconciler
	limiter     *ImportLimiter
	maxFileSize int64
}

// NewService wires the pipeline over store. checker may be nil, in which case
// no achievements are evaluated after commit.
func NewService(store Store, checker AchievementChecker, cfg *config.Config) *Service {
	var hooks []PostCommitHook
	if checker != nil {
		hooks = append(hooks, AchievementHook(checker))
	}

	rec := NewReconciler(store, cfg.Import.DefaultPassword, cfg.Import.BcryptCost, hooks...)
	rec.SetHookLimits(cfg.Import.AchievementWorkers, cfg.Import.AchievementTimeout)

	return &Service{
		validator:   NewValidator(store),
		reconciler:  rec,
		limiter:     NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		maxFileSize: cfg.Import.MaxFileSize,
	}
}

// Validate reads a result sheet, detects its layout, parses and validates
// every row. Format errors abort before any row is parsed.
func (s *Service) Validate(ctx context.Context, data []byte, examID, schoolID string, declared layout.ExamType) (*ValidateResult, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "exam_id", examID, "school_id", schoolID, "declared_type", declared)

	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	sh, err := sheet.Read(data)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	format, err := DetectFormat(sh, declared)
	if err != nil {
		log.Info("sheet rejected", "columns", sh.ColumnCount(), "error", err)
		return nil, err
	}

	rows := ParseRows(sh, format.Map)
	rows, err = s.validator.Validate(ctx, rows, examID, schoolID)
	if err != nil {
		return nil, err
	}

	result := &ValidateResult{
		Format:           format,
		Rows:             rows,
		Summary:          Summarize(rows),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	log.Info("sheet validated",
		"layout", format.Map.Key(),
		"sheet_kind", sh.Kind,
		"rows", result.Summary.Total,
		"valid", result.Summary.Valid,
		"not_registered", result.Summary.NotRegistered,
		"duplicate_in_exam", result.Summary.DuplicateInExam,
		"duplicate_in_file", result.Summary.DuplicateInFile,
		"invalid_number", result.Summary.InvalidNumber,
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

// Revalidate re-runs validation on rows the reviewer edited.
func (s *Service) Revalidate(ctx context.Context, rows []ParsedRow, examID, schoolID string) (*ValidateResult, error) {
	start := time.Now()

	rows, err := s.validator.Revalidate(ctx, rows, examID, schoolID)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{
		Rows:             rows,
		Summary:          Summarize(rows),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// Confirm commits reviewed rows. It is the only mutating call and waits for
// an import slot first.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ConfirmResult{}, err
	}
	defer s.limiter.Release()

	return s.reconciler.Confirm(ctx, req)
}

// Limiter exposes the import limiter for status reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}
