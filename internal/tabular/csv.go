package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

func readCSV(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open csv %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}

	table := Table{Columns: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv row: %w", err)
		}
		row := make([]any, len(header))
		for i := range row {
			if i < len(record) {
				row[i] = record[i]
			} else {
				row[i] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func writeCSV(path string, table Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %q: %w", path, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(table.Columns); err != nil {
		_ = file.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(table.Columns))
		for i := range record {
			if i < len(row) {
				record[i] = FormatCell(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			_ = file.Close()
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return file.Close()
}
