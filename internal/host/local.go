package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/cochaviz/sambalxc/internal/logging"
)

var _ Runner = &LocalRunner{}

// LocalRunner executes commands on the machine running the binary.
type LocalRunner struct {
	Logger *slog.Logger
}

func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := CommandLine(name, args...)
	logging.Ensure(r.Logger).Debug("running host command", "command", line)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &CommandError{
				Command:  line,
				ExitCode: exitErr.ExitCode(),
				Output:   stderr.String(),
				Err:      err,
			}
		}
		return stdout.String(), fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.String(), nil
}
