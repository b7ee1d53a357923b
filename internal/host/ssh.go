package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/cochaviz/sambalxc/internal/logging"
)

var _ Runner = &SSHRunner{}

const defaultSSHDialTimeout = 10 * time.Second

// SSHConfig describes how to reach a remote virtualization node.
type SSHConfig struct {
	Host           string
	Port           string
	User           string
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
}

// SSHRunner executes commands on a remote node through a single SSH connection.
type SSHRunner struct {
	client *ssh.Client
	addr   string
	logger *slog.Logger
}

// DialSSH connects to the node described by cfg using public key authentication.
func DialSSH(cfg SSHConfig, logger *slog.Logger) (*SSHRunner, error) {
	logger = logging.Ensure(logger)

	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("ssh host is required")
	}
	if cfg.Port == "" {
		cfg.Port = "22"
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSSHDialTimeout
	}

	key, err := os.ReadFile(expandHome(cfg.KeyFile))
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", cfg.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", cfg.KeyFile, err)
	}

	hostKeyCallback, err := resolveHostKeyCallback(cfg.KnownHostsFile, logger)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	logger.Debug("connected to node", "addr", addr, "user", cfg.User)
	return &SSHRunner{client: client, addr: addr, logger: logger}, nil
}

func (r *SSHRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := CommandLine(name, args...)
	r.logger.Debug("running remote host command", "addr", r.addr, "command", line)

	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("new ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(line)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		return stdout.String(), ctx.Err()
	case err := <-done:
		if err == nil {
			return stdout.String(), nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), &CommandError{
				Command:  line,
				ExitCode: exitErr.ExitStatus(),
				Output:   stderr.String(),
				Err:      err,
			}
		}
		return stdout.String(), fmt.Errorf("run %s on %s: %w", name, r.addr, err)
	}
}

// Close releases the SSH connection.
func (r *SSHRunner) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func resolveHostKeyCallback(knownHostsFile string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	path := expandHome(knownHostsFile)
	if path == "" {
		path = expandHome("~/.ssh/known_hosts")
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("known_hosts file not found; host key will not be verified", "path", path)
			return ssh.InsecureIgnoreHostKey(), nil
		}
		return nil, fmt.Errorf("stat known_hosts %s: %w", path, err)
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
	}
	return callback, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + strings.TrimPrefix(path, "~")
		}
	}
	return path
}
