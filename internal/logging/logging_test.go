package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIHandlerFormatsRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelDebug).With("component", "workflow")

	logger.Warn("bind mount failed", "host_path", "/mnt/pve/drive", "error", errors.New("exit status 2"))

	line := buf.String()
	if !strings.HasPrefix(line, "WARN ") {
		t.Fatalf("line = %q, want WARN prefix", line)
	}
	for _, want := range []string{
		"| bind mount failed",
		"component=workflow",
		"host_path=/mnt/pve/drive",
		`error="exit status 2"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q does not contain %q", line, want)
		}
	}
}

func TestCLIHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, nil).WithGroup("share")

	logger.Info("resolved", "name", "Data")

	if !strings.Contains(buf.String(), "share.name=Data") {
		t.Fatalf("grouped attribute missing: %q", buf.String())
	}
}

func TestOKLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelInfo)

	OK(context.Background(), logger, "samba installed")

	if !strings.HasPrefix(buf.String(), "OK ") {
		t.Fatalf("line = %q, want OK prefix", buf.String())
	}
}

func TestOKLevelFilteredByWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelWarn)

	OK(context.Background(), logger, "samba installed")

	if buf.Len() != 0 {
		t.Fatalf("expected no output at warn level, got %q", buf.String())
	}
}

func TestJSONLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(ModeJSON, &buf, slog.LevelInfo)

	OK(context.Background(), logger, "done")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json record: %v", err)
	}
	if record["level"] != "OK" {
		t.Fatalf("level = %v, want OK", record["level"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"ok":      LevelOK,
		"Warning": slog.LevelWarn,
		"err":     slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("ParseLevel(verbose) error = nil, want non-nil")
	}
}
