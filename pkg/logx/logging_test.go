package logx

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want zerolog.Level
	}{
		{raw: "debug", want: zerolog.DebugLevel},
		{raw: "WARN", want: zerolog.WarnLevel},
		{raw: "warning", want: zerolog.WarnLevel},
		{raw: "", want: zerolog.InfoLevel},
		{raw: "nonsense", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.raw, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "taskforge.log")
	cfg := Config{Level: "debug", Console: false}
	cfg.File.Enabled = true
	cfg.File.Path = path

	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("task completed", String("task", "abc"), Int("attempt", 2))
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if rec["message"] != "task completed" || rec["task"] != "abc" {
		t.Fatalf("record = %v", rec)
	}
}

func TestNopAndZero(t *testing.T) {
	t.Parallel()
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	// Logging through a zero logger must be safe.
	zero.Info("ignored")

	n := Nop()
	if n.IsZero() {
		t.Fatal("Nop logger is usable, not zero")
	}
	n.Error("also ignored", Err(os.ErrNotExist))
}

func TestWithAccumulatesFields(t *testing.T) {
	t.Parallel()
	base := Nop()
	derived := base.With(String("component", "worker"))
	if len(base.fields) != 0 {
		t.Fatal("With must not mutate the receiver")
	}
	again := derived.With(Int("shard", 1))
	if len(derived.fields) != 1 || len(again.fields) != 2 {
		t.Fatalf("fields = %d/%d, want 1/2", len(derived.fields), len(again.fields))
	}
}

func TestStackTrace(t *testing.T) {
	t.Parallel()
	s := StackTrace(0, 8)
	if !strings.Contains(s, "logging_test.go") {
		t.Fatalf("stack should include this file:\n%s", s)
	}
}
