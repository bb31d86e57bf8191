package sheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// Turkish vendor exports in BIFF8 are usually windows-1254; utf-8 is the retry.
var xlsCharsets = []string{"windows-1254", "utf-8"}

func readXLS(data []byte) (*Sheet, error) {
	var (
		wb  *xls.WorkBook
		err error
	)
	for _, cs := range xlsCharsets {
		wb, err = xls.OpenReader(bytes.NewReader(data), cs)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, ErrEmpty
	}

	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			// Keep row positions stable so DataStartRow offsets stay valid.
			rows = append(rows, nil)
			continue
		}
		cols := make([]string, row.LastCol())
		for j := range cols {
			cols[j] = row.Col(j)
		}
		rows = append(rows, cols)
	}

	return &Sheet{Name: ws.Name, Kind: KindXLS, Rows: rows}, nil
}
