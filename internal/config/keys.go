package config

import "github.com/samber/lo"

// Key is one resolvable input: a viper key, the environment variable and flag
// that may supply it, and the literal used when neither does.
type Key struct {
	Name    string
	Env     string
	Flag    string
	Default string
	Usage   string
}

const (
	KeyShareName       = "share.name"
	KeyHostPath        = "share.host_path"
	KeyMountPath       = "share.mount_path"
	KeyGuestOK         = "share.guest_ok"
	KeyWritable        = "share.writable"
	KeyHostname        = "container.hostname"
	KeyCPU             = "container.cpu"
	KeyRAM             = "container.ram"
	KeyDisk            = "container.disk"
	KeyOS              = "container.os"
	KeyOSVersion       = "container.os_version"
	KeyUnprivileged    = "container.unprivileged"
	KeyTags            = "container.tags"
	KeyBackend         = "backend.kind"
	KeyStorage         = "backend.storage"
	KeyTemplateStorage = "backend.template_storage"
	KeyBridge          = "backend.bridge"
	KeySSHHost         = "backend.ssh.host"
	KeySSHUser         = "backend.ssh.user"
	KeySSHPort         = "backend.ssh.port"
	KeySSHKey          = "backend.ssh.key"
	KeyLibvirtURI      = "backend.libvirt.uri"
	KeyTemplateDir     = "backend.libvirt.template_dir"
	KeyRunDir          = "backend.libvirt.run_dir"
	KeySettleDelay     = "settle_delay"
)

// Keys lists every input in the order it is registered.
var Keys = []Key{
	{KeyShareName, "SAMBA_SHARE_NAME", "share-name", "Samba", "name of the exported share"},
	{KeyHostPath, "SAMBA_HOST_PATH", "host-path", "", "host directory to bind-mount; empty keeps data inside the container"},
	{KeyMountPath, "SAMBA_MOUNT_PATH", "mount-path", "/shared_data/samba_share", "share path inside the container"},
	{KeyGuestOK, "SAMBA_GUEST_OK", "guest-ok", "yes", "allow guest access (yes/no)"},
	{KeyWritable, "SAMBA_WRITABLE", "writable", "yes", "allow writes to the share (yes/no)"},
	{KeyHostname, "var_hostname", "hostname", "samba", "container hostname"},
	{KeyCPU, "var_cpu", "cpu", "1", "container cores"},
	{KeyRAM, "var_ram", "ram", "512", "container memory in MiB"},
	{KeyDisk, "var_disk", "disk", "4", "container disk in GiB"},
	{KeyOS, "var_os", "os", "debian", "container OS template"},
	{KeyOSVersion, "var_version", "os-version", "12", "container OS version"},
	{KeyUnprivileged, "var_unprivileged", "unprivileged", "1", "create an unprivileged container (1/0)"},
	{KeyTags, "var_tags", "tags", "fileshare;samba", "container tags separated by ';'"},
	{KeyBackend, "SAMBALXC_BACKEND", "backend", BackendPCT, "container backend (pct, libvirt)"},
	{KeyStorage, "PVE_STORAGE", "storage", "local-lvm", "Proxmox storage for the root filesystem"},
	{KeyTemplateStorage, "PVE_TEMPLATE_STORAGE", "template-storage", "local", "Proxmox storage holding OS templates"},
	{KeyBridge, "PVE_BRIDGE", "bridge", "vmbr0", "network bridge for the container"},
	{KeySSHHost, "PVE_SSH_HOST", "ssh-host", "", "run pct on this Proxmox node over SSH"},
	{KeySSHUser, "PVE_SSH_USER", "ssh-user", "root", "SSH user"},
	{KeySSHPort, "PVE_SSH_PORT", "ssh-port", "22", "SSH port"},
	{KeySSHKey, "PVE_SSH_KEY", "ssh-key", "~/.ssh/id_ed25519", "SSH private key file"},
	{KeyLibvirtURI, "LIBVIRT_URI", "connect-uri", "lxc:///", "libvirt connection URI"},
	{KeyTemplateDir, "LIBVIRT_TEMPLATE_DIR", "template-dir", "/var/lib/sambalxc/templates", "directory holding rootfs tarballs"},
	{KeyRunDir, "LIBVIRT_RUN_DIR", "run-dir", "/var/lib/sambalxc/containers", "directory holding container root filesystems"},
	{KeySettleDelay, "SAMBALXC_SETTLE_DELAY", "settle-delay", "5s", "wait after restarting for a bind mount"},
}

// Lookup returns the key registered under name.
func Lookup(name string) (Key, bool) {
	return lo.Find(Keys, func(k Key) bool { return k.Name == name })
}
