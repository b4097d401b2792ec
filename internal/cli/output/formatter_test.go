package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Fatal("json format did not produce JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Fatal("yaml format did not produce YAMLFormatter")
	}
	if _, ok := NewFormatter("bogus").(*TableFormatter); !ok {
		t.Fatal("unknown format did not fall back to table")
	}
}

func TestTableRender(t *testing.T) {
	table := &Table{Headers: []string{"ID", "NAME"}}
	table.AddRow("c1", "notes")
	table.AddRow("c2", "journal")

	var buf bytes.Buffer
	if err := table.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "NAME") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "c2") {
		t.Fatalf("row = %q", lines[2])
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.Format(&buf, map[string]int{"count": 3}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), `"count": 3`) {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &YAMLFormatter{}
	if err := f.Format(&buf, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "status: ok") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestHelpers(t *testing.T) {
	if got := Millis(0); got != "-" {
		t.Fatalf("Millis(0) = %q", got)
	}
	if got := Dash(""); got != "-" {
		t.Fatalf("Dash = %q", got)
	}
	if got := Dash("x"); got != "x" {
		t.Fatalf("Dash = %q", got)
	}
	if got := TruncateID("0123456789abcdef"); got != "0123456789ab..." {
		t.Fatalf("TruncateID = %q", got)
	}
	if got := TruncateID("short"); got != "short" {
		t.Fatalf("TruncateID = %q", got)
	}
}
