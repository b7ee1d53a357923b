package setup

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/cochaviz/sambalxc/internal/config"
)

var (
	ErrNotRoot        = errors.New("not running as root")
	ErrMissingCommand = errors.New("required command not found")
	ErrMissingBridge  = errors.New("network bridge not found")
)

// Preflight lists the host checks for one backend.
type Preflight struct {
	RequireRoot bool
	Commands    []string
	Bridge      string

	geteuid    func() int
	lookPath   func(string) (string, error)
	linkByName func(string) (netlink.Link, error)
}

// ForBackend returns the checks relevant to backend. A pct backend driven
// over SSH has nothing to check on the local host.
func ForBackend(backend config.BackendInputs) Preflight {
	switch {
	case backend.Remote():
		return Preflight{}
	case backend.Kind == config.BackendLibvirt:
		return Preflight{
			RequireRoot: true,
			Commands:    []string{"virsh", "tar"},
			Bridge:      backend.Bridge,
		}
	default:
		return Preflight{
			RequireRoot: true,
			Commands:    []string{"pct", "pveam", "pvesh"},
			Bridge:      backend.Bridge,
		}
	}
}

// Empty reports whether there is nothing to check.
func (p Preflight) Empty() bool {
	return !p.RequireRoot && len(p.Commands) == 0 && p.Bridge == ""
}

// Run performs every check and returns all failures joined.
func (p Preflight) Run() error {
	logger := getLogger()
	if p.Empty() {
		logger.Info("no local checks for this backend")
		return nil
	}

	var errs []error
	if p.RequireRoot {
		if err := p.requireRoot(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.ensureCommands(); err != nil {
		errs = append(errs, err)
	}
	if p.Bridge != "" {
		if err := p.ensureBridge(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, err := range errs {
		logger.Error("preflight check failed", "error", err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Debug("preflight checks passed", "commands", p.Commands, "bridge", p.Bridge)
	return nil
}

func (p Preflight) requireRoot() error {
	geteuid := p.geteuid
	if geteuid == nil {
		geteuid = unix.Geteuid
	}
	if uid := geteuid(); uid != 0 {
		return fmt.Errorf("%w (euid %d)", ErrNotRoot, uid)
	}
	return nil
}

func (p Preflight) ensureCommands() error {
	lookPath := p.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var errs []error
	for _, name := range p.Commands {
		if _, err := lookPath(name); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCommand, name))
		}
	}
	return errors.Join(errs...)
}

func (p Preflight) ensureBridge() error {
	linkByName := p.linkByName
	if linkByName == nil {
		linkByName = netlink.LinkByName
	}
	link, err := linkByName(p.Bridge)
	if err != nil {
		if isLinkNotFound(err) {
			return fmt.Errorf("%w: %s", ErrMissingBridge, p.Bridge)
		}
		return fmt.Errorf("lookup bridge %s: %w", p.Bridge, err)
	}
	if link.Type() != "bridge" {
		getLogger().Warn("network device is not a bridge", "device", p.Bridge, "type", link.Type())
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		getLogger().Warn("bridge is down", "bridge", p.Bridge)
	}
	return nil
}

func isLinkNotFound(err error) bool {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ENODEV) {
		return true
	}
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound)
}
