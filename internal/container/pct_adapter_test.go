package container

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cochaviz/sambalxc/arch"
	"github.com/cochaviz/sambalxc/internal/host"
)

type stubResponse struct {
	out string
	err error
}

type stubRunner struct {
	responses map[string]stubResponse
	calls     []string
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	line := host.CommandLine(name, args...)
	r.calls = append(r.calls, line)
	if resp, ok := r.responses[line]; ok {
		return resp.out, resp.err
	}
	return "", nil
}

func newTestPCTDriver(runner host.Runner) *PCTDriver {
	return &PCTDriver{
		Runner:          runner,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Storage:         "local-lvm",
		TemplateStorage: "local",
		Arch:            arch.X86_64,
		AddressInterval: time.Millisecond,
		AddressRetries:  3,
	}
}

func TestPCTDriverCreateUsesCachedTemplate(t *testing.T) {
	runner := &stubRunner{responses: map[string]stubResponse{
		"pvesh get /cluster/nextid": {out: "105\n"},
		"pveam list local": {out: "NAME                                                 SIZE\n" +
			"local:vztmpl/debian-11-standard_11.7-1_amd64.tar.zst 110MB\n" +
			"local:vztmpl/debian-12-standard_12.7-1_amd64.tar.zst 120MB\n"},
		"pct exec 105 -- hostname -I": {out: "192.168.1.50 fd00::5\n"},
	}}
	driver := newTestPCTDriver(runner)

	handle, err := driver.Create(context.Background(), Request{
		Hostname: "samba", CPU: "1", RAM: "512", Disk: "4",
		OS: "debian", OSVersion: "12", Unprivileged: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if handle.ID != "105" || handle.IP != "192.168.1.50" {
		t.Fatalf("handle = %+v, want ID 105 and IP 192.168.1.50", handle)
	}

	var created string
	for _, call := range runner.calls {
		if strings.HasPrefix(call, "pct create 105 ") {
			created = call
		}
		if strings.HasPrefix(call, "pveam download") {
			t.Fatalf("unexpected template download: %s", call)
		}
	}
	if !strings.Contains(created, "local:vztmpl/debian-12-standard_12.7-1_amd64.tar.zst") {
		t.Fatalf("create call does not use cached template: %q", created)
	}
	if !slices.Contains(runner.calls, "pct start 105") {
		t.Fatalf("container was not started: %v", runner.calls)
	}
}

func TestPCTDriverDownloadsNewestTemplate(t *testing.T) {
	runner := &stubRunner{responses: map[string]stubResponse{
		"pveam list local": {out: "NAME SIZE\n"},
		"pveam available --section system": {out: "" +
			"system          debian-11-standard_11.7-1_amd64.tar.zst\n" +
			"system          debian-12-standard_12.2-1_amd64.tar.zst\n" +
			"system          debian-12-standard_12.7-1_amd64.tar.zst\n" +
			"system          ubuntu-24.04-standard_24.04-2_amd64.tar.zst\n"},
	}}
	driver := newTestPCTDriver(runner)

	volid, err := driver.resolveTemplate(context.Background(), "debian", "12")
	if err != nil {
		t.Fatalf("resolveTemplate() error = %v", err)
	}
	if volid != "local:vztmpl/debian-12-standard_12.7-1_amd64.tar.zst" {
		t.Fatalf("volid = %q", volid)
	}
	if !slices.Contains(runner.calls, "pveam download local debian-12-standard_12.7-1_amd64.tar.zst") {
		t.Fatalf("template was not downloaded: %v", runner.calls)
	}
}

func TestPCTDriverTemplateNotFound(t *testing.T) {
	runner := &stubRunner{responses: map[string]stubResponse{
		"pveam available --section system": {out: "system debian-1-standard_1.0-1_amd64.tar.zst\n"},
	}}
	driver := newTestPCTDriver(runner)

	_, err := driver.resolveTemplate(context.Background(), "debian", "12")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestPCTDriverNoAddress(t *testing.T) {
	runner := &stubRunner{responses: map[string]stubResponse{}}
	driver := newTestPCTDriver(runner)

	_, err := driver.waitForAddress(context.Background(), Handle{ID: "105"})
	if !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}

func TestPCTDriverBindMount(t *testing.T) {
	runner := &stubRunner{}
	driver := newTestPCTDriver(runner)

	if err := driver.BindMount(context.Background(), Handle{ID: "105"}, "/mnt/pve/drive", "/shared_data/samba_share"); err != nil {
		t.Fatalf("BindMount() error = %v", err)
	}
	want := "pct set 105 -mp0 /mnt/pve/drive,mp=/shared_data/samba_share"
	if len(runner.calls) != 1 || runner.calls[0] != want {
		t.Fatalf("calls = %v, want [%s]", runner.calls, want)
	}
}

func TestPCTDriverExecReportsExitCode(t *testing.T) {
	cmdErr := &host.CommandError{Command: "pct exec", ExitCode: 3}
	runner := &stubRunner{responses: map[string]stubResponse{
		"pct exec 105 -- bash -c 'systemctl is-active --quiet smbd'": {err: cmdErr},
	}}
	driver := newTestPCTDriver(runner)

	result, err := driver.Exec(context.Background(), Handle{ID: "105"}, "systemctl is-active --quiet smbd")
	if !errors.Is(err, cmdErr) {
		t.Fatalf("Exec() error = %v, want %v", err, cmdErr)
	}
	if result.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestBuildCreateArgs(t *testing.T) {
	args := buildCreateArgs("105", "local:vztmpl/debian.tar.zst", "local-lvm", Request{
		Hostname: "samba", CPU: "2", RAM: "1024", Disk: "8",
		Unprivileged: false, Tags: []string{"fileshare", "samba"},
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--cores 2",
		"--memory 1024",
		"--rootfs local-lvm:8",
		"--net0 name=eth0,bridge=vmbr0,ip=dhcp",
		"--unprivileged 0",
		"--tags fileshare;samba",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("create args %q missing %q", joined, want)
		}
	}
}

func TestIsTemplateMatchRequiresSeparator(t *testing.T) {
	if isTemplateMatch("debian-12-standard_12.7-1_amd64.tar.zst", "debian-1", "_amd64.tar") {
		t.Fatal("debian-1 must not match debian-12 templates")
	}
	if !isTemplateMatch("ubuntu-24.04-standard_24.04-2_amd64.tar.zst", "ubuntu-24.04", "_amd64.tar") {
		t.Fatal("ubuntu-24.04 should match")
	}
}
