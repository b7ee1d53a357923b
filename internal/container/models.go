package container

// Request is the resolved sizing and identity of the container to create.
// Sizes are passed to the backend as given.
type Request struct {
	Hostname     string
	CPU          string
	RAM          string // MiB
	Disk         string // GiB
	OS           string
	OSVersion    string
	Unprivileged bool
	Tags         []string
	Bridge       string
}

// Handle identifies a created container and the address it obtained.
type Handle struct {
	ID string
	IP string
}

// Result is the outcome of a command executed inside a container.
type Result struct {
	Stdout   string
	ExitCode int
}

// UnprivilegedIDOffset is the first host UID/GID that container root maps to
// when the container is unprivileged.
const UnprivilegedIDOffset = 100000

// UnprivilegedIDCount is the size of the mapped UID/GID range.
const UnprivilegedIDCount = 65536
