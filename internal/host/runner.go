// Package host runs commands on the virtualization host, either on the local
// machine or on a remote node over SSH.
package host

import (
	"context"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Runner executes a program on the host and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError reports a command that ran but did not succeed.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	output := strings.TrimSpace(e.Output)
	if output == "" {
		return fmt.Sprintf("%s: exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit code %d: %s", e.Command, e.ExitCode, output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Quote returns s quoted for a POSIX/bash shell. Words that need no quoting are
// returned unchanged.
func Quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// syntax.Quote rejects strings bash cannot represent (NUL bytes).
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}

// CommandLine joins name and args into a single shell command line.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, Quote(name))
	for _, arg := range args {
		parts = append(parts, Quote(arg))
	}
	return strings.Join(parts, " ")
}
