package container

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	libvirt "libvirt.org/go/libvirt"

	"github.com/cochaviz/sambalxc/arch"
	"github.com/cochaviz/sambalxc/internal/host"
	"github.com/cochaviz/sambalxc/internal/logging"
)

var _ Driver = &LibvirtDriver{}

//go:embed default_domain.xml
var defaultDomain string

// LibvirtDriver provisions containers through libvirt's LXC driver on the
// local host. Root filesystems are unpacked from OS template tarballs found in
// TemplateDir.
type LibvirtDriver struct {
	ConnectionURI string
	TemplateDir   string
	RunDir        string
	Arch          arch.Architecture
	Logger        *slog.Logger
	// Runner executes tar and virsh; defaults to a LocalRunner.
	Runner host.Runner

	AddressInterval time.Duration
	AddressRetries  int

	mu      sync.Mutex
	domains map[string]domainTemplateData
}

func (d *LibvirtDriver) Create(ctx context.Context, req Request) (Handle, error) {
	if d == nil {
		return Handle{}, errors.New("libvirt driver is not configured")
	}
	if d.ConnectionURI == "" {
		return Handle{}, errors.New("libvirt driver ConnectionURI is not configured")
	}
	if d.TemplateDir == "" || d.RunDir == "" {
		return Handle{}, errors.New("libvirt driver TemplateDir and RunDir are required")
	}

	name := req.Hostname
	if name == "" {
		name = "lxc"
	}
	name = fmt.Sprintf("%s-%s", name, strings.SplitN(uuid.NewString(), "-", 2)[0])

	runDir, err := ensureRunDirectory(filepath.Join(d.RunDir, name))
	if err != nil {
		return Handle{}, err
	}
	logger := d.logger().With("domain", name, "run_dir", runDir)
	if req.Disk != "" {
		logger.Debug("directory-backed rootfs; disk size is not enforced", "disk_gib", req.Disk)
	}

	archive, err := findTemplateArchive(d.TemplateDir, req.OS, req.OSVersion, d.Arch)
	if err != nil {
		return Handle{}, err
	}
	rootfs := filepath.Join(runDir, "rootfs")
	logger.Info("unpacking template", "template", archive)
	if err := d.extractTemplate(ctx, archive, rootfs); err != nil {
		return Handle{}, err
	}
	if err := os.WriteFile(filepath.Join(rootfs, "etc", "hostname"), []byte(req.Hostname+"\n"), 0o644); err != nil {
		logger.Warn("writing container hostname failed", "error", err)
	}
	if req.Unprivileged {
		if err := shiftOwnership(rootfs, UnprivilegedIDOffset); err != nil {
			return Handle{}, fmt.Errorf("shift rootfs ownership: %w", err)
		}
	}

	data, err := buildDomainTemplateData(name, rootfs, d.Arch, req)
	if err != nil {
		return Handle{}, fmt.Errorf("derive domain template data: %w", err)
	}
	if err := d.define(runDir, data); err != nil {
		return Handle{}, err
	}

	handle := Handle{ID: name}
	if err := d.Start(ctx, handle); err != nil {
		return Handle{}, err
	}

	ip, err := d.waitForAddress(ctx, handle)
	if err != nil {
		return Handle{}, err
	}
	handle.IP = ip

	d.mu.Lock()
	if d.domains == nil {
		d.domains = map[string]domainTemplateData{}
	}
	d.domains[name] = data
	d.mu.Unlock()

	logger.Info("container started", "ip", ip)
	return handle, nil
}

func (d *LibvirtDriver) Stop(_ context.Context, handle Handle) error {
	return d.withDomain(handle, func(dom *libvirt.Domain) error {
		if err := dom.Destroy(); err != nil {
			if isLibvirtError(err, libvirt.ERR_OPERATION_INVALID) {
				return nil
			}
			return fmt.Errorf("stop domain %s: %w", handle.ID, err)
		}
		return nil
	})
}

func (d *LibvirtDriver) Start(_ context.Context, handle Handle) error {
	return d.withDomain(handle, func(dom *libvirt.Domain) error {
		if err := dom.Create(); err != nil {
			return fmt.Errorf("start domain %s: %w", handle.ID, err)
		}
		return nil
	})
}

func (d *LibvirtDriver) EnsureHostDir(_ context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create host directory %s: %w", path, err)
	}
	return nil
}

func (d *LibvirtDriver) BindMount(_ context.Context, handle Handle, hostPath, mountPath string) error {
	d.mu.Lock()
	data, ok := d.domains[handle.ID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("bind mount into %s: %w", handle.ID, ErrUnknownContainer)
	}

	data.Mounts = append(append([]domainMount(nil), data.Mounts...), domainMount{Source: hostPath, Target: mountPath})
	if err := d.define(filepath.Join(d.RunDir, handle.ID), data); err != nil {
		return fmt.Errorf("bind mount %s into %s: %w", hostPath, handle.ID, err)
	}

	d.mu.Lock()
	d.domains[handle.ID] = data
	d.mu.Unlock()
	return nil
}

func (d *LibvirtDriver) Exec(ctx context.Context, handle Handle, command string) (Result, error) {
	out, err := d.runner().Run(ctx, "virsh", d.execArgs(handle, command)...)
	if err != nil {
		var cmdErr *host.CommandError
		if errors.As(err, &cmdErr) {
			return Result{Stdout: out, ExitCode: cmdErr.ExitCode}, err
		}
		return Result{Stdout: out, ExitCode: -1}, err
	}
	return Result{Stdout: out}, nil
}

func (d *LibvirtDriver) CommandHint(handle Handle, command string) string {
	return host.CommandLine("virsh", d.execArgs(handle, command)...)
}

func (d *LibvirtDriver) execArgs(handle Handle, command string) []string {
	return []string{"-c", d.ConnectionURI, "lxc-enter-namespace", handle.ID, "--noseclabel", "/bin/sh", "-c", command}
}

// define renders the domain XML, keeps a copy in runDir and (re)defines the
// persistent domain. Changes to a running domain apply on its next start.
func (d *LibvirtDriver) define(runDir string, data domainTemplateData) error {
	domainXML, err := renderDomainXML(defaultDomain, data)
	if err != nil {
		return fmt.Errorf("render domain definition: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "domain.xml"), domainXML, 0o644); err != nil {
		return fmt.Errorf("write domain definition: %w", err)
	}

	conn, err := libvirt.NewConnect(d.ConnectionURI)
	if err != nil {
		return fmt.Errorf("open libvirt connection %s: %w", d.ConnectionURI, err)
	}
	defer conn.Close()

	dom, err := conn.DomainDefineXML(string(domainXML))
	if err != nil {
		return fmt.Errorf("define domain %s: %w", data.Name, err)
	}
	return dom.Free()
}

func (d *LibvirtDriver) withDomain(handle Handle, fn func(dom *libvirt.Domain) error) error {
	conn, err := libvirt.NewConnect(d.ConnectionURI)
	if err != nil {
		return fmt.Errorf("open libvirt connection %s: %w", d.ConnectionURI, err)
	}
	defer conn.Close()

	dom, err := conn.LookupDomainByName(handle.ID)
	if err != nil {
		if isLibvirtError(err, libvirt.ERR_NO_DOMAIN) {
			return fmt.Errorf("lookup domain %s: %w", handle.ID, ErrUnknownContainer)
		}
		return fmt.Errorf("lookup domain %s: %w", handle.ID, err)
	}
	defer dom.Free()

	return fn(dom)
}

func (d *LibvirtDriver) waitForAddress(ctx context.Context, handle Handle) (string, error) {
	interval := d.AddressInterval
	if interval <= 0 {
		interval = defaultAddressInterval
	}
	retries := d.AddressRetries
	if retries <= 0 {
		retries = defaultAddressRetries
	}

	for i := 0; i < retries; i++ {
		var ip string
		err := d.withDomain(handle, func(dom *libvirt.Domain) error {
			for _, source := range []libvirt.DomainInterfaceAddressesSource{
				libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_LEASE,
				libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_ARP,
			} {
				ifaces, err := dom.ListAllInterfaceAddresses(source)
				if err != nil {
					continue
				}
				if ip = firstInterfaceIPv4(ifaces); ip != "" {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if ip != "" {
			return ip, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
	return "", fmt.Errorf("domain %s: %w after %d attempts", handle.ID, ErrNoAddress, retries)
}

func firstInterfaceIPv4(ifaces []libvirt.DomainInterface) string {
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		for _, addr := range iface.Addrs {
			if ip := net.ParseIP(addr.Addr); ip != nil && ip.To4() != nil {
				return ip.String()
			}
		}
	}
	return ""
}

func (d *LibvirtDriver) runner() host.Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return &host.LocalRunner{Logger: d.Logger}
}

func (d *LibvirtDriver) logger() *slog.Logger {
	return logging.Ensure(d.Logger)
}
