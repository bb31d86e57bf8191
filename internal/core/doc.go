// Package core implements the exam result import pipeline.
//
// The pipeline has two phases. The validate phase is read-only:
//
//  1. [sheet.Read] turns the uploaded bytes into rows of cells
//  2. [DetectFormat] picks the column map by sentinel header or column count
//  3. [ParseRows] extracts student rows, dropping summary rows
//  4. [Validator] assigns each row a [ValidationStatus]
//
// The reviewer may edit, deselect or revalidate rows. The confirm phase then
// hands the rows to [Reconciler.Confirm], which writes them in a single
// transaction through a [Store] and runs post-commit hooks such as
// achievement checks.
//
// # Error Handling
//
// Format errors ([ErrUnrecognizedLayout], [ErrExamTypeMismatch]) abort the
// validate phase. Row defects never do; they are recorded on the row as
// Turkish reasons. Any error inside the confirm transaction rolls back the
// whole batch. [MapError] turns errors into coded user messages.
package core
