package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
)

// captureStdout captures stdout output during fn execution
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

type operation struct {
	ID         string `json:"id"`
	TargetName string `json:"target_name"`
}

// =============================================================================
// PrintJSON / PrintYAML Tests
// =============================================================================

func TestPrintJSON(t *testing.T) {
	out := captureStdout(t, func() {
		if err := PrintJSON(operation{ID: "op1", TargetName: "ath79/generic"}); err != nil {
			t.Fatalf("PrintJSON error: %v", err)
		}
	})
	var result map[string]string
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result["target_name"] != "ath79/generic" {
		t.Errorf("unexpected JSON %v", result)
	}
	if !strings.Contains(out, "  ") {
		t.Error("expected indented JSON output")
	}
}

func TestPrintYAML_RespectsJsonTags(t *testing.T) {
	out := captureStdout(t, func() {
		if err := PrintYAML(operation{ID: "op1", TargetName: "ath79/generic"}); err != nil {
			t.Fatalf("PrintYAML error: %v", err)
		}
	})
	if !strings.Contains(out, "target_name: ath79/generic") {
		t.Errorf("expected target_name (json tag), got %q", out)
	}
	if !strings.Contains(out, "id: op1") {
		t.Errorf("expected id field, got %q", out)
	}
}

// =============================================================================
// PrintFormatted Tests
// =============================================================================

func TestPrintFormatted(t *testing.T) {
	tests := []struct {
		format    string
		wantTable bool
		wantErr   bool
		contains  string
	}{
		{format: "table", wantTable: true},
		{format: "", wantTable: true},
		{format: "json", contains: `"id": "op1"`},
		{format: "yaml", contains: "id: op1"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var tableCalled bool
			var err error
			out := captureStdout(t, func() {
				err = PrintFormatted(tt.format, operation{ID: "op1"}, func() error {
					tableCalled = true
					return nil
				})
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("PrintFormatted() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tableCalled != tt.wantTable {
				t.Errorf("table called = %v, want %v", tableCalled, tt.wantTable)
			}
			if tt.contains != "" && !strings.Contains(out, tt.contains) {
				t.Errorf("expected %q in %q", tt.contains, out)
			}
		})
	}
}

// =============================================================================
// PrintTable Tests
// =============================================================================

func TestPrintTable_Alignment(t *testing.T) {
	out := captureStdout(t, func() {
		PrintTable(
			[]string{"ID", "TARGET"},
			[][]string{
				{"1", "x86/64"},
				{"100", "ath79/generic"},
			},
		)
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (header + 2 rows), got %d", len(lines))
	}
	if strings.Index(lines[0], "TARGET") != strings.Index(lines[2], "ath79") {
		t.Errorf("columns are not aligned:\n%s", out)
	}
}

func TestPrintTable_EmptyRows(t *testing.T) {
	out := captureStdout(t, func() {
		PrintTable([]string{"ID", "TARGET"}, nil)
	})
	if !strings.Contains(out, "ID") {
		t.Errorf("expected headers even with empty rows, got %q", out)
	}
}

// =============================================================================
// PrintMessage / PrintError / FormatSize Tests
// =============================================================================

func TestPrintMessage(t *testing.T) {
	out := captureStdout(t, func() {
		PrintMessage("hello world")
	})
	if strings.TrimSpace(out) != "hello world" {
		t.Errorf("expected 'hello world', got %q", out)
	}
}

func TestPrintError(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	PrintError(fmt.Errorf("test error"))

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	if !strings.Contains(buf.String(), "test error") {
		t.Errorf("expected error message on stderr, got %q", buf.String())
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{7 * 1024 * 1024, "7.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
