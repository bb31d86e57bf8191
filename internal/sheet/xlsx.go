package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func readXLSX(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	// The first tab in workbook order, whichever tab was active on save.
	list := f.GetSheetList()
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	name := list[0]

	// Raw values keep numbers locale-free ("16.5" rather than "16,50").
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %q: get rows: %w", name, err)
	}

	return &Sheet{Name: name, Kind: KindXLSX, Rows: rows}, nil
}
