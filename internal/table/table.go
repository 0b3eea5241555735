// Package table renders rows of text as an ASCII table. Cells may contain
// ANSI color sequences; they do not count towards column widths.
package table

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Alignment controls how a cell is padded within its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Table accumulates a header and rows and writes them on Render.
type Table struct {
	writer      io.Writer
	header      []string
	rows        [][]string
	alignment   []Alignment
	headerAlign []Alignment
}

// NewTable returns an empty table writing to w.
func NewTable(w io.Writer) *Table {
	return &Table{writer: w}
}

// WithHeader sets the header cells.
func (t *Table) WithHeader(header []string) *Table {
	t.header = header
	return t
}

// WithColumnAlignment sets the alignment of body cells per column. Columns
// without an entry are left aligned.
func (t *Table) WithColumnAlignment(alignment []Alignment) *Table {
	t.alignment = alignment
	return t
}

// WithHeaderAlignment sets the alignment of header cells per column.
func (t *Table) WithHeaderAlignment(alignment []Alignment) *Table {
	t.headerAlign = alignment
	return t
}

// WithRows appends all the given rows.
func (t *Table) WithRows(rows [][]string) *Table {
	t.rows = append(t.rows, rows...)
	return t
}

// Append adds one row.
func (t *Table) Append(row []string) {
	t.rows = append(t.rows, row)
}

// Render writes the table. The header section is omitted when no header
// was set.
func (t *Table) Render() {
	widths := t.columnWidths()
	border := separator(widths)
	fmt.Fprintln(t.writer, border)
	if len(t.header) > 0 {
		fmt.Fprintln(t.writer, formatRow(t.header, widths, t.headerAlign))
		fmt.Fprintln(t.writer, border)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, formatRow(row, widths, t.alignment))
	}
	fmt.Fprintln(t.writer, border)
}

func (t *Table) columnWidths() []int {
	n := len(t.header)
	for _, row := range t.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	widths := make([]int, n)
	measure := func(row []string) {
		for i, cell := range row {
			if w := displayWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func separator(widths []int) string {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w+2))
		sb.WriteByte('+')
	}
	return sb.String()
}

func formatRow(row []string, widths []int, alignment []Alignment) string {
	var sb strings.Builder
	sb.WriteByte('|')
	for i, w := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		align := AlignLeft
		if i < len(alignment) {
			align = alignment[i]
		}
		sb.WriteByte(' ')
		sb.WriteString(pad(cell, w, align))
		sb.WriteString(" |")
	}
	return sb.String()
}

func pad(cell string, width int, align Alignment) string {
	n := width - displayWidth(cell)
	if n <= 0 {
		return cell
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", n) + cell
	case AlignCenter:
		left := n / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", n-left)
	}
	return cell + strings.Repeat(" ", n)
}

func displayWidth(s string) int {
	return utf8.RuneCountInString(stripAnsi(s))
}

func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
