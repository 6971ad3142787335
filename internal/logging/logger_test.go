package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("hello", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello") {
		t.Fatalf("expected 'hello' in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Fatalf("expected key/value in output, got: %s", output)
	}
}

func TestSetupLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf, "warn", "text")
	log.Info("quiet")
	log.Warn("loud")

	output := buf.String()
	if strings.Contains(output, "quiet") {
		t.Errorf("info message should be filtered at warn level: %s", output)
	}
	if !strings.Contains(output, "loud") {
		t.Errorf("warn message missing: %s", output)
	}
}

func TestWithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelDebug).With("component", "pool").WithGroup("req")
	log.Debug("acquired", "id", 7)

	output := buf.String()
	if !strings.Contains(output, "component=pool") {
		t.Errorf("missing With attribute: %s", output)
	}
	if !strings.Contains(output, "req.id=7") {
		t.Errorf("missing grouped attribute: %s", output)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelInfo)
	ctx := WithContext(context.Background(), log)

	FromContext(ctx).Info("from ctx")
	if !strings.Contains(buf.String(), "from ctx") {
		t.Errorf("logger from context did not write: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext() without logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := Default()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
