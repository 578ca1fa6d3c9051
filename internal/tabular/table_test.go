package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Columns: []string{ColumnQuestion, ColumnSQL, ColumnTime},
		Rows: [][]any{
			{"How many policies?", "SELECT count(*) FROM policy", 1.25},
			{"Largest claim", "", 0.5},
		},
	}
}

func TestRoundTripXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sql_result_qwen_turbo.xlsx")
	require.NoError(t, WriteFile(path, sampleTable()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"QA", "SQL", "time"}, got.Columns)
	require.Len(t, got.Rows, 2)
	require.Equal(t, "How many policies?", got.Rows[0][0])
	require.Equal(t, "1.25", got.Rows[0][2])
	require.Equal(t, "", got.Cell(1, ColumnSQL))
}

func TestWriteXLSXRejectsOverlongCell(t *testing.T) {
	table := sampleTable()
	long := strings.Repeat("x", 50000)
	require.NoError(t, table.SetColumn(ColumnResult, []any{"ok", long}))
	path := filepath.Join(t.TempDir(), "out.xlsx")

	err := WriteFile(path, table)
	require.ErrorIs(t, err, ErrCellTooLong)
	require.Contains(t, err.Error(), `row 2 column "result"`)
	require.Contains(t, err.Error(), "50000 characters")
	_, statErr := os.Stat(path)
	require.True(t, errors.Is(statErr, os.ErrNotExist), "no truncated workbook should be written")

	csvPath := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteFile(csvPath, table))
	got, err := ReadFile(csvPath)
	require.NoError(t, err)
	require.Equal(t, long, got.Cell(1, ColumnResult))
}

func TestWriteXLSXAcceptsCellAtLimit(t *testing.T) {
	table := sampleTable()
	atLimit := strings.Repeat("é", 32767)
	require.NoError(t, table.SetColumn(ColumnResult, []any{atLimit, ""}))
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteFile(path, table))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, atLimit, got.Cell(0, ColumnResult))
}

func TestRoundTripCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, WriteFile(path, sampleTable()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []any{"Largest claim", "", "0.5"}, got.Rows[1])
}

func TestRoundTripParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.parquet")
	table := sampleTable()
	require.NoError(t, table.SetColumn(ColumnRunnable, []any{"Yes", "No (no SQL found)"}))
	require.NoError(t, WriteFile(path, table))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"QA", "SQL", "time", "runnable"}, got.Columns)
	require.Equal(t, 1.25, got.Cell(0, ColumnTime))
	require.Equal(t, "No (no SQL found)", got.Cell(1, ColumnRunnable))
}

func TestParquetRejectsUnknownColumns(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "x.parquet"), Table{Columns: []string{"other"}})
	require.True(t, errors.Is(err, ErrUnsupportedFormat), "err = %v", err)
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := ReadFile("report.json")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.ErrorIs(t, WriteFile(filepath.Join(t.TempDir(), "report.txt"), Table{}), ErrUnsupportedFormat)
}

func TestSetColumnReplacesAndAppends(t *testing.T) {
	table := sampleTable()
	require.NoError(t, table.SetColumn(ColumnSQL, []any{"SELECT 1", "SELECT 2"}))
	require.NoError(t, table.SetColumn(ColumnResult, []any{"r1", "r2"}))
	require.Equal(t, []string{"QA", "SQL", "time", "result"}, table.Columns)
	require.Equal(t, "SELECT 2", table.Cell(1, ColumnSQL))
	require.Equal(t, "r1", table.Cell(0, ColumnResult))
	require.Error(t, table.SetColumn("short", []any{"only one"}))
	require.Nil(t, table.Cell(5, ColumnSQL))
}

func TestFormatCell(t *testing.T) {
	require.Equal(t, "", FormatCell(nil))
	require.Equal(t, "0.5", FormatCell(0.5))
	require.Equal(t, "42", FormatCell(int64(42)))
	require.Equal(t, "abc", FormatCell([]byte("abc")))
}
