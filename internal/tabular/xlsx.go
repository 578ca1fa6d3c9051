package tabular

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// ErrCellTooLong is returned instead of letting excelize cut a cell down to
// the workbook limit of excelize.TotalCellChars characters.
var ErrCellTooLong = errors.New("cell exceeds workbook character limit")

func readXLSX(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("workbook %q has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}

	table := Table{Columns: rows[0], Rows: make([][]any, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		row := make([]any, len(table.Columns))
		for i := range row {
			if i < len(raw) {
				row[i] = raw[i]
			} else {
				row[i] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func writeXLSX(path string, table Table) error {
	if err := checkCellLengths(table); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header := make([]any, len(table.Columns))
	for i, column := range table.Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(defaultSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		copy(values, row)
		if err := f.SetSheetRow(defaultSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %q: %w", path, err)
	}
	return nil
}

func checkCellLengths(table Table) error {
	for i, row := range table.Rows {
		for j, value := range row {
			var text string
			switch typed := value.(type) {
			case string:
				text = typed
			case []byte:
				text = string(typed)
			default:
				continue
			}
			if n := utf8.RuneCountInString(text); n > excelize.TotalCellChars {
				column := fmt.Sprintf("#%d", j+1)
				if j < len(table.Columns) {
					column = table.Columns[j]
				}
				return fmt.Errorf("%w: row %d column %q has %d characters, limit %d; write .csv or .parquet instead",
					ErrCellTooLong, i+1, column, n, excelize.TotalCellChars)
			}
		}
	}
	return nil
}
