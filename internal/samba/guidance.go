package samba

import (
	"fmt"

	"github.com/cochaviz/sambalxc/internal/host"
)

const (
	dataSourceInternal = "Stored inside the LXC's disk"
	userPlaceholder    = "<username>"
)

// DataSource describes where the share data lives.
func DataSource(share Share) string {
	if share.HostBacked() {
		return fmt.Sprintf("Bind-mounted from host path '%s'", share.HostPath)
	}
	return dataSourceInternal
}

// UNCPath returns the Windows style network path of the share.
func UNCPath(ip string, share Share) string {
	return fmt.Sprintf(`\\%s\%s`, ip, share.Name)
}

// SMBURL returns the smb:// URL of the share.
func SMBURL(ip string, share Share) string {
	return fmt.Sprintf("smb://%s/%s", ip, share.Name)
}

// HostOwner returns the host UID that the guest account maps to.
func HostOwner(unprivileged bool, offset int) int {
	if unprivileged {
		return offset + GuestUID
	}
	return GuestUID
}

// HostPermissionGuidance explains how to make a bind-mounted host directory
// writable for the share. No permission change is attempted on the host.
func HostPermissionGuidance(hostPath string, unprivileged bool, offset int) []string {
	owner := HostOwner(unprivileged, offset)
	chown := fmt.Sprintf("chown -R %d:%d %s && chmod -R %s %s", owner, owner, host.Quote(hostPath), DirectoryMode, host.Quote(hostPath))
	if unprivileged {
		return []string{
			fmt.Sprintf("unprivileged container: '%s' inside the container is UID %d on the host", GuestAccount, owner),
			"on the host run: " + chown,
		}
	}
	return []string{
		fmt.Sprintf("privileged container: '%s' inside the container is UID %d on the host", GuestAccount, owner),
		"on the host run: " + chown,
	}
}

// AddUserHint is the in-container command template for adding an
// authenticated Samba user.
func AddUserHint() string {
	return AddUserCommand(userPlaceholder)
}
