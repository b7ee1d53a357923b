// Package provision runs the container provisioning workflow: acquire a
// container, attach share storage, then install and configure Samba in it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cochaviz/sambalxc/internal/container"
	"github.com/cochaviz/sambalxc/internal/logging"
	"github.com/cochaviz/sambalxc/internal/samba"
)

// DefaultSettleDelay is waited after the post-bind-mount restart so the mount
// is visible before further commands run against it.
const DefaultSettleDelay = 5 * time.Second

// Workflow sequences the provisioning steps. Every step blocks until the
// previous one has finished.
type Workflow struct {
	Provisioner container.Provisioner
	Executor    container.Executor
	Logger      *slog.Logger
	SettleDelay time.Duration
	// Sleep waits for the settle delay; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary is what the operator is told once the workflow completes.
type Summary struct {
	Handle         container.Handle
	Hostname       string
	Share          samba.Share
	Storage        StorageState
	StorageTrace   []StorageState
	Unprivileged   bool
	ServiceHealthy bool
	Config         string
	// AddUserHint is set when guest access is disabled.
	AddUserHint string
}

// Run executes the workflow. Only fatal failures are returned; storage
// degradation and an unhealthy service are reported through the logger and
// the returned Summary.
func (w *Workflow) Run(ctx context.Context, req container.Request, share samba.Share) (Summary, error) {
	if w.Provisioner == nil || w.Executor == nil {
		return Summary{}, errors.New("workflow requires a provisioner and an executor")
	}
	logger := w.logger()

	logger.Info("creating container", "hostname", req.Hostname, "os", req.OS, "os_version", req.OSVersion)
	handle, err := w.Provisioner.Create(ctx, req)
	if err != nil {
		return Summary{}, fmt.Errorf("create container: %w", err)
	}
	logger = logger.With("container", handle.ID)
	logging.OK(ctx, logger, "container created", "ip", handle.IP)

	summary := Summary{
		Handle:       handle,
		Unprivileged: req.Unprivileged,
	}

	storage, err := w.attachStorage(ctx, logger, handle, &share, req.Unprivileged)
	summary.StorageTrace = storage.trace
	summary.Storage = storage.state
	summary.Share = share
	if err != nil {
		return summary, err
	}

	if err := w.configureService(ctx, logger, handle, share, &summary); err != nil {
		return summary, err
	}

	if !share.GuestOK {
		summary.AddUserHint = w.Executor.CommandHint(handle, samba.AddUserHint())
	}
	return summary, nil
}

// exec runs command in the container and returns its trimmed stdout.
func (w *Workflow) exec(ctx context.Context, logger *slog.Logger, handle container.Handle, step, command string) (string, error) {
	logger.Debug("running container command", "step", step)
	result, err := w.Executor.Exec(ctx, handle, command)
	if err != nil {
		return "", fmt.Errorf("%s: %w", step, err)
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (w *Workflow) sleep(ctx context.Context, d time.Duration) error {
	if w.Sleep != nil {
		return w.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Workflow) settleDelay() time.Duration {
	if w.SettleDelay <= 0 {
		return DefaultSettleDelay
	}
	return w.SettleDelay
}

func (w *Workflow) logger() *slog.Logger {
	return logging.Ensure(w.Logger).With("component", "provision")
}
