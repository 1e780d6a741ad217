package output

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders aligned columns of KPI values. Cells may carry ANSI styling;
// widths are measured on the printed text.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
	right   map[int]bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visualLen(h)
	}
	return &Table{
		headers: headers,
		widths:  widths,
		right:   make(map[int]bool),
	}
}

// AlignRight right-aligns the given zero-based columns, typically numbers.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow appends a row. Missing trailing values render empty; extra values
// are dropped.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range t.headers {
		if i < len(values) {
			row[i] = values[i]
		}
		if w := visualLen(row[i]); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the formatted table.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	var sb strings.Builder

	for i, h := range t.headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(headerStyle.Render(t.cell(i, h)))
	}
	sb.WriteString("\n")

	for i, w := range t.widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(StyleMuted.Render(strings.Repeat("─", w)))
	}
	sb.WriteString("\n")

	for _, row := range t.rows {
		line := make([]string, len(row))
		for i, c := range row {
			line[i] = t.cell(i, c)
		}
		// Trailing blanks from empty last columns are noise.
		sb.WriteString(strings.TrimRight(strings.Join(line, "  "), " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

// Fprint writes the rendered table to w.
func (t *Table) Fprint(w io.Writer) error {
	_, err := io.WriteString(w, t.Render())
	return err
}

func (t *Table) cell(col int, s string) string {
	if t.right[col] {
		return padLeft(s, t.widths[col])
	}
	return pad(s, t.widths[col])
}

// visualLen is the printed width of s, ignoring ANSI escape sequences.
func visualLen(s string) int {
	return lipgloss.Width(s)
}

// pad right-pads s to the given visual width.
func pad(s string, width int) string {
	n := visualLen(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// padLeft left-pads s to the given visual width.
func padLeft(s string, width int) string {
	n := visualLen(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}
