package magic

import (
	"fmt"
	"io"
	"strings"

	"github.com/noteable-io/noteable-notebook-magics/pkg/sqlcell"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func green(s string) string { return ansiGreen + s + ansiReset }
func red(s string) string   { return ansiRed + s + ansiReset }

// renderResultSet prints a result as an aligned text table.
func renderResultSet(w io.Writer, result *sqlcell.ResultSet) {
	if result == nil || len(result.Columns) == 0 {
		return
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	cells := make([][]string, len(result.Rows))
	for r, row := range result.Rows {
		cells[r] = make([]string, len(result.Columns))
		for i := range result.Columns {
			var text string
			if i < len(row) {
				text = formatValue(row[i])
			}
			cells[r][i] = text
			if len(text) > widths[i] {
				widths[i] = len(text)
			}
		}
	}

	writeRow := func(row []string) {
		parts := make([]string, len(row))
		for i, cell := range row {
			parts[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(result.Columns)
	rules := make([]string, len(widths))
	for i, width := range widths {
		rules[i] = strings.Repeat("-", width)
	}
	writeRow(rules)
	for _, row := range cells {
		writeRow(row)
	}
	fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
