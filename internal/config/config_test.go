package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range Keys {
		t.Setenv(k.Env, "")
	}
}

func resolve(t *testing.T, args ...string) Inputs {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))

	v, err := Load(flags, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	in, err := Resolve(v)
	require.NoError(t, err)
	return in
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)

	in := resolve(t)

	assert.Equal(t, "Samba", in.Share.Name)
	assert.Empty(t, in.Share.HostPath)
	assert.Equal(t, "/shared_data/samba_share", in.Share.MountPath)
	assert.True(t, in.Share.GuestOK)
	assert.True(t, in.Share.Writable)
	assert.Equal(t, "samba", in.Container.Hostname)
	assert.Equal(t, "1", in.Container.CPU)
	assert.Equal(t, "512", in.Container.RAM)
	assert.Equal(t, "4", in.Container.Disk)
	assert.Equal(t, "debian", in.Container.OS)
	assert.Equal(t, "12", in.Container.OSVersion)
	assert.True(t, in.Container.Unprivileged)
	assert.Equal(t, []string{"fileshare", "samba"}, in.Container.Tags)
	assert.Equal(t, BackendPCT, in.Backend.Kind)
	assert.Equal(t, "local-lvm", in.Backend.Storage)
	assert.Equal(t, "vmbr0", in.Backend.Bridge)
	assert.False(t, in.Backend.Remote())
	assert.Equal(t, 5*time.Second, in.SettleDelay)
}

func TestResolvePrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAMBA_SHARE_NAME", "FromEnv")
	t.Setenv("var_hostname", "nas")

	in := resolve(t, "--share-name", "FromFlag")

	assert.Equal(t, "FromFlag", in.Share.Name)
	assert.Equal(t, "nas", in.Container.Hostname)
}

func TestResolveEmptyCountsAsAbsent(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAMBA_MOUNT_PATH", "/srv/share")

	in := resolve(t, "--share-name", "", "--mount-path", "")

	assert.Equal(t, "Samba", in.Share.Name)
	assert.Equal(t, "/srv/share", in.Share.MountPath)
}

func TestResolveBooleansByIdentity(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"yes", true},
		{"no", false},
		{"YES", false},
		{"true", false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SAMBA_GUEST_OK", tc.value)
			t.Setenv("SAMBA_WRITABLE", tc.value)

			in := resolve(t)
			assert.Equal(t, tc.want, in.Share.GuestOK)
			assert.Equal(t, tc.want, in.Share.Writable)
			assert.Equal(t, !tc.want, in.ShareConfig().ReadOnly())
		})
	}

	clearEnv(t)
	t.Setenv("var_unprivileged", "0")
	assert.False(t, resolve(t).Container.Unprivileged)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("var_ram", "2048")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SAMBA_HOST_PATH=/mnt/pve/drive\nvar_ram=1024\n"), 0o644))
	// godotenv leaves variables that are set, even to "", untouched.
	require.NoError(t, os.Unsetenv("SAMBA_HOST_PATH"))

	v, err := Load(nil, path)
	require.NoError(t, err)
	in, err := Resolve(v)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/pve/drive", in.Share.HostPath)
	assert.Equal(t, "2048", in.Container.RAM)
}

func TestResolveUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAMBALXC_BACKEND", "docker")

	v, err := Load(nil, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	_, err = Resolve(v)
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRequestCarriesBridge(t *testing.T) {
	clearEnv(t)

	req := resolve(t, "--bridge", "vmbr1", "--ram", "1024").Request()

	assert.Equal(t, "vmbr1", req.Bridge)
	assert.Equal(t, "1024", req.RAM)
	assert.Equal(t, "samba", req.Hostname)
}

func TestParseDelay(t *testing.T) {
	d, err := ParseDelay("10")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	d, err = ParseDelay("1500ms")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	_, err = ParseDelay("-1s")
	assert.Error(t, err)
	_, err = ParseDelay("soon")
	assert.Error(t, err)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"fileshare", "samba"}, SplitTags("fileshare;samba"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitTags(" a ; b,c;;"))
	assert.Empty(t, SplitTags(""))
}

func TestYAML(t *testing.T) {
	clearEnv(t)

	out, err := resolve(t, "--ssh-host", "pve1").YAML()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "5s", doc["settle_delay"])

	backend, ok := doc["backend"].(map[string]any)
	require.True(t, ok)
	ssh, ok := backend["ssh"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pve1", ssh["host"])
}
