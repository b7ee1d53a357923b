package setup

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/vishvananda/netlink"

	"github.com/cochaviz/sambalxc/internal/config"
)

func lookPathIn(available ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/sbin/" + name, nil
			}
		}
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
}

func bridgeUp(name string) (netlink.Link, error) {
	return &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: name, Flags: net.FlagUp}}, nil
}

func TestForBackend(t *testing.T) {
	pct := ForBackend(config.BackendInputs{Kind: config.BackendPCT, Bridge: "vmbr0"})
	if !pct.RequireRoot || pct.Bridge != "vmbr0" || len(pct.Commands) != 3 {
		t.Fatalf("unexpected pct preflight: %+v", pct)
	}

	lv := ForBackend(config.BackendInputs{Kind: config.BackendLibvirt, Bridge: "virbr0"})
	if lv.Commands[0] != "virsh" || lv.Bridge != "virbr0" {
		t.Fatalf("unexpected libvirt preflight: %+v", lv)
	}

	remote := ForBackend(config.BackendInputs{Kind: config.BackendPCT, Bridge: "vmbr0", SSH: config.SSHInputs{Host: "pve1"}})
	if !remote.Empty() {
		t.Fatalf("remote preflight should be empty: %+v", remote)
	}
	if err := remote.Run(); err != nil {
		t.Fatalf("Run() on empty preflight = %v", err)
	}
}

func TestRunPasses(t *testing.T) {
	p := Preflight{
		RequireRoot: true,
		Commands:    []string{"pct", "pveam", "pvesh"},
		Bridge:      "vmbr0",
		geteuid:     func() int { return 0 },
		lookPath:    lookPathIn("pct", "pveam", "pvesh"),
		linkByName:  bridgeUp,
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunJoinsFailures(t *testing.T) {
	p := Preflight{
		RequireRoot: true,
		Commands:    []string{"pct", "pveam", "pvesh"},
		Bridge:      "vmbr9",
		geteuid:     func() int { return 1000 },
		lookPath:    lookPathIn("pct"),
		linkByName: func(string) (netlink.Link, error) {
			return nil, syscall.ENODEV
		},
	}

	err := p.Run()
	if err == nil {
		t.Fatal("Run() error = nil, want failures")
	}
	for _, want := range []error{ErrNotRoot, ErrMissingCommand, ErrMissingBridge} {
		if !errors.Is(err, want) {
			t.Fatalf("Run() error = %v, want it to match %v", err, want)
		}
	}
}

func TestBridgeLookupError(t *testing.T) {
	p := Preflight{
		Bridge: "vmbr0",
		linkByName: func(string) (netlink.Link, error) {
			return nil, syscall.EPERM
		},
	}
	err := p.Run()
	if err == nil || errors.Is(err, ErrMissingBridge) {
		t.Fatalf("Run() error = %v, want a lookup error", err)
	}
}
