package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestQuote(t *testing.T) {
	cases := map[string]string{
		"/shared_data/samba_share": "/shared_data/samba_share",
		"":                         "''",
		"My Share":                 "'My Share'",
	}
	for input, want := range cases {
		if got := Quote(input); got != want {
			t.Fatalf("Quote(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestCommandLine(t *testing.T) {
	got := CommandLine("pct", "set", "100", "-mp0", "/mnt/pve/my drive,mp=/data")
	want := "pct set 100 -mp0 '/mnt/pve/my drive,mp=/data'"
	if got != want {
		t.Fatalf("CommandLine() = %s, want %s", got, want)
	}
}

func TestLocalRunnerCapturesStdout(t *testing.T) {
	runner := &LocalRunner{}

	out, err := runner.Run(context.Background(), "sh", "-c", "printf hello; printf noise >&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "hello" {
		t.Fatalf("stdout = %q, want %q", out, "hello")
	}
}

func TestLocalRunnerReportsExitCode(t *testing.T) {
	runner := &LocalRunner{}

	_, err := runner.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Output != "broken\n" {
		t.Fatalf("Output = %q, want %q", cmdErr.Output, "broken\n")
	}
}

func TestDialSSHMissingKey(t *testing.T) {
	_, err := DialSSH(SSHConfig{
		Host:    "pve.invalid",
		KeyFile: filepath.Join(t.TempDir(), "missing"),
	}, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
