package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-03-01T10:00:02Z","level":"WARN","msg":"retry prompt","component":"flow"}
not json
{"time":"2026-03-01T10:00:00Z","level":"DEBUG","msg":"dispatch","component":"api","method":"GET"}
{"time":"2026-03-01T10:00:01Z","level":"INFO","msg":"login succeeded","component":"auth","user_id":3}
`

func TestParseLogs(t *testing.T) {
	entries, err := ParseLogs(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("ParseLogs failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (malformed line skipped)", len(entries))
	}

	if entries[0].Message != "dispatch" || entries[2].Message != "retry prompt" {
		t.Errorf("entries not sorted by time: %+v", entries)
	}
	if entries[0].Attrs["method"] != "GET" {
		t.Errorf("extra attrs not captured: %+v", entries[0].Attrs)
	}
	if entries[1].UserID != 3 {
		t.Errorf("UserID = %d, want 3", entries[1].UserID)
	}
}

func TestReadLogs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(sampleLog), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := ReadLogs(dir)
	if err != nil {
		t.Fatalf("ReadLogs failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}

	if _, err := ReadLogs(t.TempDir()); err == nil {
		t.Error("expected error for missing log file")
	}
}

func TestFilterLogs(t *testing.T) {
	entries, _ := ParseLogs(strings.NewReader(sampleLog))

	tests := []struct {
		name   string
		filter LogFilter
		want   []string
	}{
		{"empty filter", LogFilter{}, []string{"dispatch", "login succeeded", "retry prompt"}},
		{"level", LogFilter{Level: "info"}, []string{"login succeeded", "retry prompt"}},
		{"component", LogFilter{Component: "api"}, []string{"dispatch"}},
		{"since", LogFilter{Since: time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)}, []string{"login succeeded", "retry prompt"}},
		{"message", LogFilter{MessageContains: "login"}, []string{"login succeeded"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterLogs(entries, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i, msg := range tt.want {
				if got[i].Message != msg {
					t.Errorf("entry %d = %q, want %q", i, got[i].Message, msg)
				}
			}
		})
	}
}

func TestWriteEntries(t *testing.T) {
	entries, _ := ParseLogs(strings.NewReader(sampleLog))

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, "text"); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "INFO - login succeeded (component=auth, user=3)") {
			t.Errorf("unexpected text output:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, "json"); err != nil {
			t.Fatal(err)
		}
		var decoded []LogEntry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(decoded) != 3 {
			t.Errorf("got %d entries, want 3", len(decoded))
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteEntries(&buf, entries, "csv"); err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV output: %v", err)
		}
		if len(records) != 4 {
			t.Errorf("got %d records, want header + 3", len(records))
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := WriteEntries(&bytes.Buffer{}, entries, "xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}
