package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).SetLevelFromString("warn")

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "WARN") {
		t.Errorf("expected warn line, got %q", out)
	}
}

func TestJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).SetJSON(true).With(map[string]any{"component": "download"})

	log.Error("download failed", map[string]any{"model_id": "m1", "error": errors.New("boom")})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "download failed" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["component"] != "download" || entry["model_id"] != "m1" || entry["error"] != "boom" {
		t.Errorf("missing fields: %v", entry)
	}
}

func TestWithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf)
	child := parent.Named("agent")

	parent.SetLevel(LevelError)
	child.Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("child should follow parent level, got %q", buf.String())
	}
}

func TestSetJSONReachesDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf)
	child := parent.Named("download")

	parent.SetJSON(true)
	child.Info("started", map[string]any{"model_id": "m1"})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("child should log JSON after parent switched, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "download" || entry["model_id"] != "m1" {
		t.Errorf("missing fields: %v", entry)
	}

	buf.Reset()
	child.SetJSON(false)
	parent.Info("plain")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("parent should follow child switching back to console, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for in, want := range tests {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("unknown level should not parse")
	}
}
