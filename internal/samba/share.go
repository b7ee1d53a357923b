// Package samba models the exported share and renders the Samba configuration
// and operator guidance derived from it.
package samba

const (
	// ConfigPath is where the rendered configuration is written inside the container.
	ConfigPath = "/etc/samba/smb.conf"
	// LogDir holds the service logs inside the container.
	LogDir = "/var/log/samba/"
	// ServiceUnit is the systemd unit serving the share.
	ServiceUnit = "smbd"
	// GuestAccount and GuestGroup own internally stored share data.
	GuestAccount = "nobody"
	GuestGroup   = "nogroup"
	// GuestUID is the UID of GuestAccount inside a Debian based container.
	GuestUID = 65534
	// DirectoryMode is applied to internally stored share data.
	DirectoryMode = "0775"
)

// Packages are installed into the container; nano is a convenience for operators.
var Packages = []string{"samba", "nano"}

// Share is the resolved share configuration. HostPath is non-empty while the
// share is backed by a host directory.
type Share struct {
	Name      string
	MountPath string
	HostPath  string
	GuestOK   bool
	Writable  bool

	detached bool
}

// HostBacked reports whether share data lives in a bind-mounted host directory.
func (s Share) HostBacked() bool {
	return s.HostPath != ""
}

// ReadOnly is the exact negation of Writable; GuestOK has no influence on it.
func (s Share) ReadOnly() bool {
	return !s.Writable
}

// DetachHostPath falls back to internal storage. The transition is one-way:
// a detached share is never attached again within the same run.
func (s *Share) DetachHostPath() {
	s.HostPath = ""
	s.detached = true
}

// Detached reports whether DetachHostPath was called.
func (s Share) Detached() bool {
	return s.detached
}
