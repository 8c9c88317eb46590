package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestProductionLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.Debug("hidden")
	log.Info("invoice created", "invoice_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug to be filtered, got %d lines", len(lines))
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON record: %v", err)
	}
	if rec["service"] != serviceName || rec["invoice_id"] != "abc" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestDevelopmentLoggerIncludesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)
	log.Debug("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
