package evaluate

import (
	"strings"

	"github.com/sqlcopilot/sqlcopilot/internal/tabular"
)

// RenderTable renders rows as a pipe table: header, a --- separator per
// column, then one line per row. NULLs render as NULL.
func RenderTable(columns []string, rows [][]any) string {
	var b strings.Builder
	writeRow(&b, columns)

	separator := make([]string, len(columns))
	for i := range separator {
		separator[i] = "---"
	}
	writeRow(&b, separator)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = nullCell
				continue
			}
			cells[i] = tabular.FormatCell(value)
		}
		writeRow(&b, cells)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}
