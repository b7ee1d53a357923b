package main

import (
	"log/slog"

	"github.com/cochaviz/sambalxc/arch"
	"github.com/cochaviz/sambalxc/internal/config"
	"github.com/cochaviz/sambalxc/internal/container"
	"github.com/cochaviz/sambalxc/internal/host"
)

// newDriver builds the backend selected by in. The returned close function
// releases any connection the backend holds.
func newDriver(in config.Inputs, logger *slog.Logger) (container.Driver, func() error, error) {
	noop := func() error { return nil }

	switch in.Backend.Kind {
	case config.BackendLibvirt:
		return &container.LibvirtDriver{
			ConnectionURI: in.Backend.Libvirt.URI,
			TemplateDir:   in.Backend.Libvirt.TemplateDir,
			RunDir:        in.Backend.Libvirt.RunDir,
			Arch:          arch.Host(),
			Logger:        logger,
			Runner:        &host.LocalRunner{Logger: logger},
		}, noop, nil

	default:
		if !in.Backend.Remote() {
			return &container.PCTDriver{
				Runner:          &host.LocalRunner{Logger: logger},
				Logger:          logger,
				Storage:         in.Backend.Storage,
				TemplateStorage: in.Backend.TemplateStorage,
				Arch:            arch.Host(),
			}, noop, nil
		}

		runner, err := host.DialSSH(host.SSHConfig{
			Host:    in.Backend.SSH.Host,
			Port:    in.Backend.SSH.Port,
			User:    in.Backend.SSH.User,
			KeyFile: in.Backend.SSH.Key,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		// Proxmox VE is only released for amd64.
		return &container.PCTDriver{
			Runner:          runner,
			Logger:          logger,
			Storage:         in.Backend.Storage,
			TemplateStorage: in.Backend.TemplateStorage,
			Arch:            arch.X86_64,
		}, runner.Close, nil
	}
}
