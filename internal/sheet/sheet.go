// Package sheet reads uploaded result files into a plain grid of cell text.
//
// Three encodings are accepted and told apart by their leading bytes:
//
//   - xlsx (ZIP container), read with excelize
//   - legacy xls (OLE2 compound document), read with extrame/xls
//   - delimited text (comma, semicolon or tab), read with encoding/csv
//
// Only the first worksheet is read. Reading is side-effect free.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmpty is returned for zero-length input or a workbook without rows.
	ErrEmpty = errors.New("empty file")

	// ErrUnsupportedFormat is returned when the input is neither a workbook nor text.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Kind names the container a sheet was read from.
type Kind string

const (
	KindXLSX Kind = "xlsx"
	KindXLS  Kind = "xls"
	KindCSV  Kind = "csv"
)

// Sheet is an in-memory grid of trimmed-free cell text, row-major.
type Sheet struct {
	Name string
	Kind Kind
	Rows [][]string
}

// Read sniffs the container type of data and returns its first worksheet.
func Read(data []byte) (*Sheet, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	var (
		sh  *Sheet
		err error
	)
	switch {
	case bytes.HasPrefix(data, zipMagic):
		sh, err = readXLSX(data)
	case bytes.HasPrefix(data, ole2Magic):
		sh, err = readXLS(data)
	case looksLikeText(data):
		sh, err = readDelimited(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	if sh.NumRows() == 0 {
		return nil, ErrEmpty
	}
	return sh, nil
}

// NumRows returns the number of rows, including header rows.
func (s *Sheet) NumRows() int {
	return len(s.Rows)
}

// Cell returns the text at (row, col) or "" when out of range.
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) || col < 0 {
		return ""
	}
	r := s.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// HeaderCell returns the trimmed text of a first-row cell.
func (s *Sheet) HeaderCell(col int) string {
	return strings.TrimSpace(s.Cell(0, col))
}

// ColumnCount returns the width of the widest row, ignoring trailing blank
// cells. Exporters frequently pad a row with empty cells or drop them, so the
// count is taken from content rather than from the raw row length.
func (s *Sheet) ColumnCount() int {
	width := 0
	for _, r := range s.Rows {
		if w := contentWidth(r); w > width {
			width = w
		}
	}
	return width
}

func contentWidth(row []string) int {
	for i := len(row) - 1; i >= 0; i-- {
		if strings.TrimSpace(row[i]) != "" {
			return i + 1
		}
	}
	return 0
}

// FromRows builds a sheet from literal rows. Intended for callers that already
// hold decoded data, and for tests.
func FromRows(name string, rows [][]string) *Sheet {
	return &Sheet{Name: name, Kind: KindCSV, Rows: rows}
}

// String describes the sheet for logs.
func (s *Sheet) String() string {
	return fmt.Sprintf("%s %q (%d rows, %d columns)", s.Kind, s.Name, s.NumRows(), s.ColumnCount())
}
