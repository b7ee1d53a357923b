package container

import (
	"context"
	"errors"
)

var (
	// ErrTemplateNotFound is returned when no OS template matches the request.
	ErrTemplateNotFound = errors.New("container template not found")
	// ErrNoAddress is returned when a started container never reports an IPv4 address.
	ErrNoAddress = errors.New("container did not obtain an address")
	// ErrUnknownContainer is returned for handles the driver did not create.
	ErrUnknownContainer = errors.New("unknown container")
)

// Provisioner creates containers and manages their lifecycle and host-side storage.
type Provisioner interface {
	// Create creates and starts a container, blocking until it has an address.
	Create(ctx context.Context, req Request) (Handle, error)
	Stop(ctx context.Context, handle Handle) error
	Start(ctx context.Context, handle Handle) error
	// EnsureHostDir creates path on the host if it does not exist.
	EnsureHostDir(ctx context.Context, path string) error
	// BindMount persists a bind mount of hostPath at mountPath. It takes effect
	// on the next start of the container.
	BindMount(ctx context.Context, handle Handle, hostPath, mountPath string) error
}

// Executor runs shell commands inside a container.
type Executor interface {
	// Exec runs command with a shell inside the container. A non-nil error is
	// returned when the command could not run or exited non-zero.
	Exec(ctx context.Context, handle Handle, command string) (Result, error)
	// CommandHint returns the host command line an operator would type to run
	// command inside the container.
	CommandHint(handle Handle, command string) string
}

// Driver is a backend implementing both collaborators.
type Driver interface {
	Provisioner
	Executor
}
