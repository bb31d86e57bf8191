package core

// validation.go assigns every parsed row its final disposition.
//
// Three sources of truth are consulted, each loaded once per call:
//  1. the file itself (student numbers appearing more than once)
//  2. attempts already recorded for the exam
//  3. students registered in the school
//
// Checks run in a fixed priority order and the first match wins. A row the
// parser already rejected keeps its parser verdict, on revalidation too:
// nothing was read for it, so a corrected number cannot make it importable.

import (
	"context"
	"fmt"
)

const (
	reasonDuplicateInExam = "Bu öğrencinin bu sınav için sonucu zaten kayıtlı; onaylanırsa mevcut sonuç güncellenecek"
	reasonNotRegistered   = "Öğrenci sistemde kayıtlı değil; onaylanırsa yeni öğrenci kaydı oluşturulacak"
	reasonNoResults       = "Satırda okunmuş sınav sonucu yok; dosyayı düzeltip yeniden yükleyin"
)

// Validator runs the validation phase against a Registry.
type Validator struct {
	registry Registry
}

// NewValidator creates a validator backed by registry.
func NewValidator(registry Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate annotates rows in place and returns them. Registry errors abort
// the call; row defects never do.
func (v *Validator) Validate(ctx context.Context, rows []ParsedRow, examID, schoolID string) ([]ParsedRow, error) {
	attempted, err := v.registry.AttemptStudentNumbers(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam attempts: %w", err)
	}
	registered, err := v.registry.SchoolStudentNumbers(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("load school students: %w", err)
	}

	applyValidation(rows, toSet(attempted), toSet(registered))
	return rows, nil
}

// Revalidate clears previous verdicts on caller-edited rows and validates
// them again from scratch, starting with the student-number check. Rows
// without lesson results are not re-judged.
func (v *Validator) Revalidate(ctx context.Context, rows []ParsedRow, examID, schoolID string) ([]ParsedRow, error) {
	for i := range rows {
		r := &rows[i]
		if !r.hasResults() {
			if !rejectedByParser(r) {
				r.IsValid = false
				r.ErrorReasons = []string{reasonNoResults}
			}
			continue
		}

		r.StudentNumber = NormalizeStudentNumber(r.StudentNumber)
		r.IsValid = true
		r.ValidationStatus = StatusValid
		r.ErrorReasons = nil

		if !ValidStudentNumber(r.StudentNumber) {
			r.markInvalid(StatusInvalidNumber, invalidNumberReason(r.StudentNumber))
		}
	}
	return v.Validate(ctx, rows, examID, schoolID)
}

func applyValidation(rows []ParsedRow, attempted, registered map[string]bool) {
	repeated := repeatedNumbers(rows)
	firstLine := make(map[string]int)

	for i := range rows {
		r := &rows[i]

		// 1. parser verdicts stand
		if settled(r) {
			continue
		}

		// 2. in-file duplicate
		if repeated[r.StudentNumber] {
			if first, ok := firstLine[r.StudentNumber]; ok {
				r.markInvalid(StatusDuplicateInFile, duplicateInFileReason(first))
				continue
			}
			firstLine[r.StudentNumber] = r.Line
		}

		switch {
		case attempted[r.StudentNumber]:
			r.markInvalid(StatusDuplicateInExam, reasonDuplicateInExam)
		case !registered[r.StudentNumber]:
			r.ValidationStatus = StatusNotRegistered
			r.addReason(reasonNotRegistered)
		default:
			r.ValidationStatus = StatusValid
		}
	}
}

func rejectedByParser(r *ParsedRow) bool {
	if r.IsValid {
		return false
	}
	return r.ValidationStatus == StatusInvalidNumber || r.ValidationStatus == StatusDuplicateInFile
}

// settled reports whether a row's verdict is final before the registry is
// consulted. Rows without results never claim a student number.
func settled(r *ParsedRow) bool {
	return rejectedByParser(r) || !r.hasResults()
}

// repeatedNumbers returns the student numbers carried by more than one row
// whose verdict is not already settled.
func repeatedNumbers(rows []ParsedRow) map[string]bool {
	counts := make(map[string]int, len(rows))
	for i := range rows {
		if !settled(&rows[i]) {
			counts[rows[i].StudentNumber]++
		}
	}
	out := make(map[string]bool)
	for n, c := range counts {
		if c > 1 {
			out[n] = true
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[NormalizeStudentNumber(v)] = true
	}
	return set
}

// Summarize counts rows per disposition.
func Summarize(rows []ParsedRow) ValidateSummary {
	s := ValidateSummary{Total: len(rows)}
	for _, r := range rows {
		switch r.ValidationStatus {
		case StatusValid:
			s.Valid++
		case StatusNotRegistered:
			s.NotRegistered++
		case StatusDuplicateInExam:
			s.DuplicateInExam++
		case StatusDuplicateInFile:
			s.DuplicateInFile++
		case StatusInvalidNumber:
			s.InvalidNumber++
		}
	}
	return s
}
