package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// Report columns with a parquet representation. Other columns cannot be
// stored in .parquet reports.
const (
	ColumnQuestion = "QA"
	ColumnSQL      = "SQL"
	ColumnTime     = "time"
	ColumnRunnable = "runnable"
	ColumnResult   = "result"
)

var reportColumns = []string{ColumnQuestion, ColumnSQL, ColumnTime, ColumnRunnable, ColumnResult}

type parquetRecord struct {
	QA       *string  `parquet:"QA,optional"`
	SQL      *string  `parquet:"SQL,optional"`
	Time     *float64 `parquet:"time,optional"`
	Runnable *string  `parquet:"runnable,optional"`
	Result   *string  `parquet:"result,optional"`
}

func writeParquet(path string, table Table) error {
	for _, column := range table.Columns {
		if !isReportColumn(column) {
			return fmt.Errorf("%w: column %q has no parquet mapping", ErrUnsupportedFormat, column)
		}
	}

	records := make([]parquetRecord, 0, len(table.Rows))
	for i := range table.Rows {
		var record parquetRecord
		for _, column := range table.Columns {
			value := table.Cell(i, column)
			switch column {
			case ColumnQuestion:
				record.QA = stringPtr(value)
			case ColumnSQL:
				record.SQL = stringPtr(value)
			case ColumnTime:
				seconds, err := toFloat(value)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				record.Time = &seconds
			case ColumnRunnable:
				record.Runnable = stringPtr(value)
			case ColumnResult:
				record.Result = stringPtr(value)
			}
		}
		records = append(records, record)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet %q: %w", path, err)
	}
	writer := parquet.NewGenericWriter[parquetRecord](file)
	if _, err := writer.Write(records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return file.Close()
}

// readParquet keeps the report columns that hold a value in at least one
// row, in report order.
func readParquet(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open parquet %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[parquetRecord](file)
	defer func() { _ = reader.Close() }()

	records := make([]parquetRecord, reader.NumRows())
	count, err := reader.Read(records)
	if err != nil && !errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("read parquet rows: %w", err)
	}
	records = records[:count]

	present := map[string]bool{}
	for _, record := range records {
		present[ColumnQuestion] = present[ColumnQuestion] || record.QA != nil
		present[ColumnSQL] = present[ColumnSQL] || record.SQL != nil
		present[ColumnTime] = present[ColumnTime] || record.Time != nil
		present[ColumnRunnable] = present[ColumnRunnable] || record.Runnable != nil
		present[ColumnResult] = present[ColumnResult] || record.Result != nil
	}

	var table Table
	for _, column := range reportColumns {
		if present[column] {
			table.Columns = append(table.Columns, column)
		}
	}
	for _, record := range records {
		row := make([]any, 0, len(table.Columns))
		for _, column := range table.Columns {
			switch column {
			case ColumnQuestion:
				row = append(row, derefString(record.QA))
			case ColumnSQL:
				row = append(row, derefString(record.SQL))
			case ColumnTime:
				if record.Time == nil {
					row = append(row, nil)
				} else {
					row = append(row, *record.Time)
				}
			case ColumnRunnable:
				row = append(row, derefString(record.Runnable))
			case ColumnResult:
				row = append(row, derefString(record.Result))
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isReportColumn(name string) bool {
	for _, column := range reportColumns {
		if column == name {
			return true
		}
	}
	return false
}

func stringPtr(value any) *string {
	s := FormatCell(value)
	return &s
}

func derefString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func toFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case string:
		if typed == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(typed, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", ColumnTime, typed, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("invalid %s value %v", ColumnTime, value)
	}
}
