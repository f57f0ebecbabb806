package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

// resetGlobals points the package at a fresh buffer and restores the
// defaults when the test finishes.
func resetGlobals(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetGlobalOutput(&buf)
	SetGlobalLevel(INFO)
	SetJSONMode(false)
	t.Cleanup(func() {
		SetGlobalOutput(os.Stderr)
		SetGlobalLevel(INFO)
		SetJSONMode(false)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := resetGlobals(t)
	log := NewLogger("executor")

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected DEBUG suppressed at INFO, got %q", buf.String())
	}

	SetGlobalLevel(DEBUG)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected DEBUG message after lowering level, got %q", buf.String())
	}
}

func TestTextFormat(t *testing.T) {
	buf := resetGlobals(t)
	log := NewLogger("store")

	log.Info("dataset loaded", "dataset", "ADSL")

	line := buf.String()
	for _, want := range []string{"[INFO ]", "[store]", "dataset loaded", "dataset=ADSL"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in output %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("expected newline-terminated output, got %q", line)
	}
}

func TestJSONMode(t *testing.T) {
	buf := resetGlobals(t)
	SetJSONMode(true)
	log := NewLogger("executor")

	log.Warn("slow filter", "dataset", "ADAE", "rows", 42)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}
	if entry.Level != "WARN" {
		t.Errorf("expected level WARN, got %q", entry.Level)
	}
	if entry.Component != "executor" {
		t.Errorf("expected component executor, got %q", entry.Component)
	}
	if entry.Message != "slow filter" {
		t.Errorf("expected message 'slow filter', got %q", entry.Message)
	}
	if entry.Fields["dataset"] != "ADAE" {
		t.Errorf("expected dataset field ADAE, got %v", entry.Fields["dataset"])
	}
	if entry.Fields["rows"] != float64(42) {
		t.Errorf("expected rows field 42, got %v", entry.Fields["rows"])
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestFieldPairing(t *testing.T) {
	buf := resetGlobals(t)
	SetJSONMode(true)
	log := NewLogger("eval")

	log.Info("msg", "key", "value", "dangling")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("expected key=value, got %v", entry.Fields["key"])
	}
	if entry.Fields["extra"] != "dangling" {
		t.Errorf("expected dangling arg under extra, got %v", entry.Fields["extra"])
	}
}

func TestNonStringKey(t *testing.T) {
	buf := resetGlobals(t)
	SetJSONMode(true)
	log := NewLogger("eval")

	log.Info("msg", 42, "value")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}
	if entry.Fields["arg0"] != "value" {
		t.Errorf("expected positional key arg0, got fields %v", entry.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"info", INFO},
		{"WARN", WARN},
		{"warning", WARN},
		{"ERROR", ERROR},
		{"error", ERROR},
		{"verbose", INFO},
		{"", INFO},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}
