package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/cochaviz/sambalxc/arch"
	"github.com/cochaviz/sambalxc/internal/host"
	"github.com/cochaviz/sambalxc/internal/logging"
)

var _ Driver = &PCTDriver{}

const (
	defaultAddressInterval = 2 * time.Second
	defaultAddressRetries  = 30
	bindMountSlot          = "mp0"
)

// PCTDriver provisions Proxmox VE containers through the pct, pveam and pvesh
// tools. Commands go through Runner, which may be local or an SSH session to
// the node.
type PCTDriver struct {
	Runner          host.Runner
	Logger          *slog.Logger
	Storage         string // rootfs storage, e.g. local-lvm
	TemplateStorage string // vztmpl storage, e.g. local
	Arch            arch.Architecture

	AddressInterval time.Duration
	AddressRetries  int
}

func (d *PCTDriver) Create(ctx context.Context, req Request) (Handle, error) {
	if d == nil || d.Runner == nil {
		return Handle{}, errors.New("pct driver is not configured")
	}
	logger := d.logger()

	out, err := d.Runner.Run(ctx, "pvesh", "get", "/cluster/nextid")
	if err != nil {
		return Handle{}, fmt.Errorf("allocate container id: %w", err)
	}
	id := strings.Trim(strings.TrimSpace(out), `"`)
	if id == "" {
		return Handle{}, errors.New("allocate container id: empty response")
	}
	logger = logger.With("ctid", id)

	template, err := d.resolveTemplate(ctx, req.OS, req.OSVersion)
	if err != nil {
		return Handle{}, err
	}
	logger.Info("creating container", "template", template, "hostname", req.Hostname)

	if _, err := d.Runner.Run(ctx, "pct", buildCreateArgs(id, template, d.storage(), req)...); err != nil {
		return Handle{}, fmt.Errorf("create container %s: %w", id, err)
	}
	if _, err := d.Runner.Run(ctx, "pct", "start", id); err != nil {
		return Handle{}, fmt.Errorf("start container %s: %w", id, err)
	}

	handle := Handle{ID: id}
	ip, err := d.waitForAddress(ctx, handle)
	if err != nil {
		return Handle{}, err
	}
	handle.IP = ip

	logger.Info("container started", "ip", ip)
	return handle, nil
}

func (d *PCTDriver) Stop(ctx context.Context, handle Handle) error {
	if _, err := d.Runner.Run(ctx, "pct", "stop", handle.ID); err != nil {
		return fmt.Errorf("stop container %s: %w", handle.ID, err)
	}
	return nil
}

func (d *PCTDriver) Start(ctx context.Context, handle Handle) error {
	if _, err := d.Runner.Run(ctx, "pct", "start", handle.ID); err != nil {
		return fmt.Errorf("start container %s: %w", handle.ID, err)
	}
	return nil
}

func (d *PCTDriver) EnsureHostDir(ctx context.Context, path string) error {
	if _, err := d.Runner.Run(ctx, "mkdir", "-p", path); err != nil {
		return fmt.Errorf("create host directory %s: %w", path, err)
	}
	return nil
}

func (d *PCTDriver) BindMount(ctx context.Context, handle Handle, hostPath, mountPath string) error {
	mountPoint := fmt.Sprintf("%s,mp=%s", hostPath, mountPath)
	if _, err := d.Runner.Run(ctx, "pct", "set", handle.ID, "-"+bindMountSlot, mountPoint); err != nil {
		return fmt.Errorf("bind mount %s into container %s: %w", hostPath, handle.ID, err)
	}
	return nil
}

func (d *PCTDriver) Exec(ctx context.Context, handle Handle, command string) (Result, error) {
	out, err := d.Runner.Run(ctx, "pct", "exec", handle.ID, "--", "bash", "-c", command)
	if err != nil {
		var cmdErr *host.CommandError
		if errors.As(err, &cmdErr) {
			return Result{Stdout: out, ExitCode: cmdErr.ExitCode}, err
		}
		return Result{Stdout: out, ExitCode: -1}, err
	}
	return Result{Stdout: out}, nil
}

func (d *PCTDriver) CommandHint(handle Handle, command string) string {
	return host.CommandLine("pct", "exec", handle.ID, "--", "bash", "-c", command)
}

func (d *PCTDriver) waitForAddress(ctx context.Context, handle Handle) (string, error) {
	interval := d.AddressInterval
	if interval <= 0 {
		interval = defaultAddressInterval
	}
	retries := d.AddressRetries
	if retries <= 0 {
		retries = defaultAddressRetries
	}

	for i := 0; i < retries; i++ {
		out, err := d.Runner.Run(ctx, "pct", "exec", handle.ID, "--", "hostname", "-I")
		if err == nil {
			if ip := firstIPv4(out); ip != "" {
				return ip, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", fmt.Errorf("container %s: %w after %d attempts", handle.ID, ErrNoAddress, retries)
}

func (d *PCTDriver) storage() string {
	if d.Storage == "" {
		return "local-lvm"
	}
	return d.Storage
}

func (d *PCTDriver) templateStorage() string {
	if d.TemplateStorage == "" {
		return "local"
	}
	return d.TemplateStorage
}

func (d *PCTDriver) logger() *slog.Logger {
	return logging.Ensure(d.Logger)
}

func buildCreateArgs(id, template, storage string, req Request) []string {
	bridge := req.Bridge
	if bridge == "" {
		bridge = "vmbr0"
	}
	args := []string{
		"create", id, template,
		"--hostname", req.Hostname,
		"--cores", req.CPU,
		"--memory", req.RAM,
		"--rootfs", fmt.Sprintf("%s:%s", storage, req.Disk),
		"--net0", fmt.Sprintf("name=eth0,bridge=%s,ip=dhcp", bridge),
		"--unprivileged", lo.Ternary(req.Unprivileged, "1", "0"),
		"--features", "nesting=1",
		"--onboot", "1",
	}
	if len(req.Tags) > 0 {
		args = append(args, "--tags", strings.Join(req.Tags, ";"))
	}
	return args
}

func firstIPv4(output string) string {
	for _, field := range strings.Fields(output) {
		if ip := net.ParseIP(field); ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}
	return ""
}
