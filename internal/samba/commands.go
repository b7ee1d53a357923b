package samba

import (
	"fmt"
	"strings"

	"github.com/cochaviz/sambalxc/internal/host"
)

// configDelimiter terminates the heredoc carrying smb.conf; it cannot occur in
// a rendered configuration.
const configDelimiter = "SAMBALXC_SMB_CONF"

// InstallCommand refreshes the package index and installs Packages.
func InstallCommand() string {
	return "apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y " + strings.Join(Packages, " ")
}

// HostnameCommand prints the container's short hostname.
func HostnameCommand() string {
	return "hostname -s"
}

// MkdirCommand creates path inside the container if missing.
func MkdirCommand(path string) string {
	return "mkdir -p " + host.Quote(path)
}

// WriteConfigCommand overwrites ConfigPath with content.
func WriteConfigCommand(content string) string {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return fmt.Sprintf("cat > %s <<'%s'\n%s%s", ConfigPath, configDelimiter, content, configDelimiter)
}

// PermissionsCommand hands internally stored share data to the guest account.
func PermissionsCommand(path string) string {
	quoted := host.Quote(path)
	return fmt.Sprintf("chown -R %s:%s %s && chmod -R %s %s", GuestAccount, GuestGroup, quoted, DirectoryMode, quoted)
}

// EnableCommand enables the service at boot.
func EnableCommand() string {
	return "systemctl enable " + ServiceUnit
}

// RestartCommand restarts the service so the new configuration is loaded.
func RestartCommand() string {
	return "systemctl restart " + ServiceUnit
}

// HealthCommand exits zero when the service is running.
func HealthCommand() string {
	return "systemctl is-active --quiet " + ServiceUnit
}

// AddUserCommand creates a login-less system user and sets its Samba password.
func AddUserCommand(user string) string {
	return fmt.Sprintf("adduser --no-create-home --disabled-password --gecos '' %s && smbpasswd -a %s", user, user)
}
