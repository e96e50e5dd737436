// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	log.Info().Msg("hidden")
	log.Warn().Str("unit", "inv-1").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["level"] != "warn" || entry["unit"] != "inv-1" || entry["message"] != "shown" {
		t.Fatalf("entry=%v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("timestamp missing: %v", entry)
	}
}

func TestNew_ConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{}, &buf)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("hello")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "hello") {
		t.Fatalf("output=%q", out)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected format error")
	}
}
