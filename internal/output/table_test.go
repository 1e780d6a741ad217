package output

import (
	"strings"
	"testing"
)

func TestVisualLen_PlainText(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"hello", 5},
		{"", 0},
		{"abc def", 7},
	}

	for _, tc := range tests {
		got := visualLen(tc.input)
		if got != tc.want {
			t.Errorf("visualLen(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestVisualLen_StripsANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{
			name:  "bold",
			input: "\x1b[1mhello\x1b[0m",
			want:  5,
		},
		{
			name:  "color",
			input: "\x1b[31mred\x1b[0m",
			want:  3,
		},
		{
			name:  "multiple sequences",
			input: "\x1b[1m\x1b[34mblue bold\x1b[0m",
			want:  9,
		},
		{
			name:  "no ansi",
			input: "plain text",
			want:  10,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := visualLen(tc.input)
			if got != tc.want {
				t.Errorf("visualLen() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  int // expected length of output
	}{
		{"needs padding", "hi", 10, 10},
		{"exact width", "hello", 5, 5},
		{"over width", "toolong", 3, 7}, // no truncation
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := pad(tc.input, tc.width)
			if len(got) != tc.want {
				t.Errorf("pad(%q, %d) len = %d, want %d", tc.input, tc.width, len(got), tc.want)
			}
		})
	}
}

func TestTable_Render(t *testing.T) {
	// Disable color so we get predictable output.
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Metric", "Status")
	tbl.AddRow("MRR", "red")
	tbl.AddRow("Churn", "green")

	output := tbl.Render()

	// Should contain headers.
	for _, want := range []string{"Metric", "Status", "MRR", "Churn"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}

	// Should have separator line.
	if !strings.Contains(output, "─") {
		t.Error("expected separator character in output")
	}

	// Count lines: header + separator + 2 data rows = 4 lines.
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != 4 {
		t.Errorf("expected 4 lines, got %d", len(lines))
	}
}

func TestTable_EmptyHeaders(t *testing.T) {
	tbl := NewTable()
	output := tbl.Render()
	if output != "" {
		t.Errorf("expected empty output for empty table, got %q", output)
	}
}

func TestTable_ColumnWidths(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("A", "LongHeader")
	tbl.AddRow("VeryLongValue", "X")

	output := tbl.Render()
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")

	if len(lines) < 3 {
		t.Fatalf("expected at least 3 lines, got %d", len(lines))
	}

	// The data row should be padded so columns align.
	dataLine := lines[2]
	if !strings.Contains(dataLine, "VeryLongValue") {
		t.Error("expected data row to contain 'VeryLongValue'")
	}
}

func TestTable_String(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Col1")
	tbl.AddRow("Val1")

	// String() should equal Render().
	if tbl.String() != tbl.Render() {
		t.Error("String() != Render()")
	}
}

func TestSetNoColor(t *testing.T) {
	// After SetNoColor(true), StyleHeader should render without ANSI.
	SetNoColor(true)
	rendered := StyleHeader.Render("test")
	if strings.Contains(rendered, "\x1b[") {
		t.Error("expected no ANSI codes after SetNoColor(true)")
	}

	SetNoColor(false)
	if IsNoColor() {
		t.Error("IsNoColor() = true after SetNoColor(false)")
	}
}

func TestTable_AlignsStyledCells(t *testing.T) {
	tbl := NewTable("Metric", "Status")
	tbl.AddRow("\x1b[31mMRR\x1b[0m", "red")
	tbl.AddRow("Churn rate", "green")

	if got := tbl.widths[0]; got != len("Churn rate") {
		t.Errorf("width = %d, want %d", got, len("Churn rate"))
	}
	if got := visualLen(pad("\x1b[31mMRR\x1b[0m", 10)); got != 10 {
		t.Errorf("padded styled cell visual width = %d, want 10", got)
	}
}

func TestTable_AlignRight(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Metric", "Current").AlignRight(1)
	tbl.AddRow("MRR", "$95,000")
	tbl.AddRow("Churn", "7.5%")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[3], "   7.5%") {
		t.Errorf("right-aligned row = %q, want value flush right", lines[3])
	}
	if !strings.HasPrefix(lines[3], "Churn ") {
		t.Errorf("left-aligned cell = %q, want padding on the right", lines[3])
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
}

func TestTable_TrimsTrailingBlanks(t *testing.T) {
	tbl := NewTable("Metric", "Note")
	tbl.AddRow("MRR")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if got := lines[len(lines)-1]; got != "MRR" {
		t.Errorf("row = %q, want %q", got, "MRR")
	}
}

func TestTable_Fprint(t *testing.T) {
	tbl := NewTable("Metric")
	tbl.AddRow("NPS")

	var sb strings.Builder
	if err := tbl.Fprint(&sb); err != nil {
		t.Fatalf("Fprint: %v", err)
	}
	if sb.String() != tbl.Render() {
		t.Errorf("Fprint wrote %q, want %q", sb.String(), tbl.Render())
	}
}
