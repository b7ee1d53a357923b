package provision

import (
	"context"
	"log/slog"

	"github.com/cochaviz/sambalxc/internal/container"
	"github.com/cochaviz/sambalxc/internal/logging"
	"github.com/cochaviz/sambalxc/internal/samba"
)

// configureService installs Samba, writes its configuration and starts it.
// A failed health check is reported but does not fail the workflow.
func (w *Workflow) configureService(ctx context.Context, logger *slog.Logger, handle container.Handle, share samba.Share, summary *Summary) error {
	logger = logger.With("step", "samba")

	logger.Info("installing packages", "packages", samba.Packages)
	if _, err := w.exec(ctx, logger, handle, "install samba", samba.InstallCommand()); err != nil {
		return err
	}

	hostname, err := w.exec(ctx, logger, handle, "query hostname", samba.HostnameCommand())
	if err != nil {
		return err
	}
	summary.Hostname = hostname

	config, err := samba.RenderConfig(hostname, share)
	if err != nil {
		return err
	}
	summary.Config = config

	logger.Info("writing samba config", "path", samba.ConfigPath, "share", share.Name)
	if _, err := w.exec(ctx, logger, handle, "write samba config", samba.WriteConfigCommand(config)); err != nil {
		return err
	}

	if share.HostBacked() {
		logger.Info("leaving ownership of bind-mounted data unchanged", "mount_path", share.MountPath)
	} else {
		if _, err := w.exec(ctx, logger, handle, "set share permissions", samba.PermissionsCommand(share.MountPath)); err != nil {
			return err
		}
	}

	if _, err := w.exec(ctx, logger, handle, "enable samba", samba.EnableCommand()); err != nil {
		return err
	}
	if _, err := w.exec(ctx, logger, handle, "restart samba", samba.RestartCommand()); err != nil {
		return err
	}

	if _, err := w.exec(ctx, logger, handle, "check samba", samba.HealthCommand()); err != nil {
		logger.Error("samba service is not running", "logs", samba.LogDir, "error", err)
		summary.ServiceHealthy = false
		return nil
	}
	summary.ServiceHealthy = true
	logging.OK(ctx, logger, "samba service is running", "share", share.Name)
	return nil
}
