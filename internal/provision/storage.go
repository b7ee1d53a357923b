package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cochaviz/sambalxc/internal/container"
	"github.com/cochaviz/sambalxc/internal/samba"
)

// StorageState is a state of the storage attachment state machine.
type StorageState string

const (
	StorageNoHostPath         StorageState = "no_host_path"
	StorageHostPathConfigured StorageState = "host_path_configured"
	StorageEnsureHostDir      StorageState = "ensure_host_dir"
	StorageBindMountRequested StorageState = "bind_mount_requested"
	StorageBindMounted        StorageState = "bind_mounted"
	StorageInternal           StorageState = "internal"
	StorageAttached           StorageState = "attached"
)

// Terminal reports whether no transition leaves s.
func (s StorageState) Terminal() bool {
	return s == StorageInternal || s == StorageAttached
}

type storageOutcome struct {
	state StorageState
	trace []StorageState
}

// attachStorage decides where share data lives and performs the bind mount
// when a host path is configured. Host directory and bind mount failures
// degrade the share to internal storage; only a failed restart after a
// successful bind mount is fatal. The mount path is created inside the
// container whatever the outcome.
func (w *Workflow) attachStorage(ctx context.Context, logger *slog.Logger, handle container.Handle, share *samba.Share, unprivileged bool) (storageOutcome, error) {
	logger = logger.With("step", "storage")

	state := StorageNoHostPath
	if share.HostBacked() {
		state = StorageHostPathConfigured
	}
	outcome := storageOutcome{trace: []StorageState{state}}

	for !state.Terminal() {
		switch state {
		case StorageNoHostPath:
			state = StorageInternal

		case StorageHostPathConfigured:
			state = StorageEnsureHostDir

		case StorageEnsureHostDir:
			if err := w.Provisioner.EnsureHostDir(ctx, share.HostPath); err != nil {
				logger.Warn("host directory is missing and could not be created; using internal storage",
					"host_path", share.HostPath, "error", err)
				share.DetachHostPath()
				state = StorageInternal
				break
			}
			state = StorageBindMountRequested

		case StorageBindMountRequested:
			if err := w.Provisioner.BindMount(ctx, handle, share.HostPath, share.MountPath); err != nil {
				logger.Warn("bind mount failed; using internal storage",
					"host_path", share.HostPath, "mount_path", share.MountPath, "error", err)
				share.DetachHostPath()
				state = StorageInternal
				break
			}
			state = StorageBindMounted

		case StorageBindMounted:
			logger.Info("restarting container to apply bind mount")
			if err := w.Provisioner.Stop(ctx, handle); err != nil {
				logger.Debug("stopping container failed; it may already be stopped", "error", err)
			}
			if err := w.Provisioner.Start(ctx, handle); err != nil {
				outcome.state = state
				return outcome, fmt.Errorf("start container after bind mount: %w", err)
			}
			if err := w.sleep(ctx, w.settleDelay()); err != nil {
				outcome.state = state
				return outcome, err
			}
			state = StorageAttached
		}
		outcome.trace = append(outcome.trace, state)
	}
	outcome.state = state

	if _, err := w.exec(ctx, logger, handle, "create share directory", samba.MkdirCommand(share.MountPath)); err != nil {
		return outcome, err
	}

	if state == StorageAttached {
		logger.Info("share data is bind-mounted from the host", "host_path", share.HostPath, "mount_path", share.MountPath)
		for _, line := range samba.HostPermissionGuidance(share.HostPath, unprivileged, container.UnprivilegedIDOffset) {
			logger.Info(line)
		}
	} else {
		logger.Info("share data is stored inside the container", "mount_path", share.MountPath)
	}
	return outcome, nil
}
