package google

import (
	"fmt"
	"strings"
)

// quoteSheet wraps a tab name in single quotes for A1 notation, doubling embedded quotes.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnName converts a 1-based column index to its letter form: 1 -> A, 27 -> AA.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// tableRange is the A1 range covering rows, at least A1:A1.
func tableRange(sheet string, rows [][]string) string {
	width := 1
	for _, r := range rows {
		width = max(width, len(r))
	}
	height := max(len(rows), 1)
	return fmt.Sprintf("%s!A1:%s%d", quoteSheet(sheet), columnName(width), height)
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = make([]any, len(r))
		for j, cell := range r {
			out[i][j] = cell
		}
	}
	return out
}
