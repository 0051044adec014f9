package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewWriter(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   Format
	}{
		{"json format", "json", FormatJSON},
		{"yaml format", "yaml", FormatYAML},
		{"table format", "table", FormatTable},
		{"unknown defaults to table", "unknown", FormatTable},
		{"empty defaults to table", "", FormatTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(tt.format)
			if w.format != tt.want {
				t.Errorf("NewWriter(%q).format = %v, want %v", tt.format, w.format, tt.want)
			}
		})
	}
}

func TestWriter_PrintJSON(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{format: FormatJSON, out: &buf}

	data := map[string]string{"key": "value"}
	if err := w.Print(data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["key"] != "value" {
		t.Errorf("decoded[key] = %v, want value", decoded["key"])
	}
}

func TestWriter_PrintYAML(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{format: FormatYAML, out: &buf}

	data := map[string]string{"key": "value"}
	if err := w.Print(data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "key:") || !strings.Contains(output, "value") {
		t.Errorf("unexpected YAML output: %q", output)
	}
}

func TestWriter_PrintTable(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{format: FormatTable, out: &buf}

	table := Table{
		Headers: []string{"ID", "NAME", "STATUS"},
		Rows: [][]string{
			{"1", "Alpha", "Active"},
			{"2", "Beta", "Inactive"},
		},
	}

	if err := w.Print(table); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (header + 2 rows), got %d", len(lines))
	}
	if !strings.Contains(lines[0], "NAME") {
		t.Error("header should contain NAME")
	}
	if !strings.Contains(lines[1], "Alpha") {
		t.Error("first row should contain Alpha")
	}
	if !strings.Contains(lines[2], "Beta") {
		t.Error("second row should contain Beta")
	}
}

func TestWriter_PrintTableFallbackToJSON(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{format: FormatTable, out: &buf}

	// Non-Table type should fall back to JSON
	data := map[string]interface{}{"complex": []int{1, 2, 3}}
	if err := w.Print(data); err != nil {
		t.Fatalf("Print() error = %v", err)
	}

	var decoded interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Errorf("output should be valid JSON for non-Table types: %v", err)
	}
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{format: FormatTable, out: &buf}

	table := Table{
		Headers: []string{"HEADER"},
		Rows:    [][]string{},
	}

	if err := w.Print(table); err != nil {
		t.Fatalf("Print() error = %v", err)
	}
	if !strings.Contains(buf.String(), "HEADER") {
		t.Error("should contain header even with no rows")
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"550e8400-e29b-41d4-a716-446655440000", "550e8400"},
		{"short", "short"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abc", 3, "abc"},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := FormatTime(time.Time{}); got != "-" {
		t.Errorf("FormatTime(zero) = %q, want -", got)
	}

	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	if got := FormatTime(ts); got != "2025-03-14 09:26" {
		t.Errorf("FormatTime() = %q, want 2025-03-14 09:26", got)
	}
}

func TestFormatScore(t *testing.T) {
	if got := FormatScore(0.875); got != "0.875" {
		t.Errorf("FormatScore(0.875) = %q, want 0.875", got)
	}
	if got := FormatScore(1); got != "1.000" {
		t.Errorf("FormatScore(1) = %q, want 1.000", got)
	}
}

func TestOrDash(t *testing.T) {
	if got := OrDash(""); got != "-" {
		t.Errorf("OrDash(\"\") = %q, want -", got)
	}
	if got := OrDash("x"); got != "x" {
		t.Errorf("OrDash(\"x\") = %q, want x", got)
	}
}
