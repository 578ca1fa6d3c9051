// Package tabular reads and writes ordered-column report tables. The file
// format is chosen by extension: .xlsx, .csv or .parquet.
package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported table format")

type Table struct {
	Columns []string
	Rows    [][]any
}

func (t Table) ColumnIndex(name string) int {
	for i, column := range t.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row/column, nil when the row is short.
func (t Table) Cell(row int, name string) any {
	idx := t.ColumnIndex(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][idx]
}

// SetColumn replaces the named column or appends it. values must have one
// entry per row.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		idx = len(t.Columns) - 1
	}
	for i := range t.Rows {
		for len(t.Rows[i]) <= idx {
			t.Rows[i] = append(t.Rows[i], nil)
		}
		t.Rows[i][idx] = values[i]
	}
	return nil
}

func ReadFile(path string) (Table, error) {
	switch format(path) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	case ".parquet":
		return readParquet(path)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// WriteFile writes the table, creating parent directories as needed.
func WriteFile(path string, table Table) error {
	ext := format(path)
	switch ext {
	case ".xlsx", ".csv", ".parquet":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	switch ext {
	case ".xlsx":
		return writeXLSX(path, table)
	case ".csv":
		return writeCSV(path, table)
	default:
		return writeParquet(path, table)
	}
}

func format(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// FormatCell renders a cell as text; nil is empty.
func FormatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}
