// Package config resolves provisioning inputs from flags, the environment and
// literal defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cochaviz/sambalxc/internal/container"
	"github.com/cochaviz/sambalxc/internal/samba"
)

const (
	BackendPCT     = "pct"
	BackendLibvirt = "libvirt"
)

// DefaultEnvFile is loaded from the working directory when present.
const DefaultEnvFile = ".env"

var ErrUnknownBackend = errors.New("unknown backend")

// Inputs are the resolved values a provisioning run works from.
type Inputs struct {
	Share       ShareInputs     `yaml:"share"`
	Container   ContainerInputs `yaml:"container"`
	Backend     BackendInputs   `yaml:"backend"`
	SettleDelay time.Duration   `yaml:"settle_delay"`
}

type ShareInputs struct {
	Name      string `yaml:"name"`
	HostPath  string `yaml:"host_path"`
	MountPath string `yaml:"mount_path"`
	GuestOK   bool   `yaml:"guest_ok"`
	Writable  bool   `yaml:"writable"`
}

type ContainerInputs struct {
	Hostname     string   `yaml:"hostname"`
	CPU          string   `yaml:"cpu"`
	RAM          string   `yaml:"ram"`
	Disk         string   `yaml:"disk"`
	OS           string   `yaml:"os"`
	OSVersion    string   `yaml:"os_version"`
	Unprivileged bool     `yaml:"unprivileged"`
	Tags         []string `yaml:"tags"`
}

type BackendInputs struct {
	Kind            string       `yaml:"kind"`
	Storage         string       `yaml:"storage"`
	TemplateStorage string       `yaml:"template_storage"`
	Bridge          string       `yaml:"bridge"`
	SSH             SSHInputs    `yaml:"ssh"`
	Libvirt         LibvirtInput `yaml:"libvirt"`
}

type SSHInputs struct {
	Host string `yaml:"host,omitempty"`
	User string `yaml:"user"`
	Port string `yaml:"port"`
	Key  string `yaml:"key"`
}

type LibvirtInput struct {
	URI         string `yaml:"uri"`
	TemplateDir string `yaml:"template_dir"`
	RunDir      string `yaml:"run_dir"`
}

// Remote reports whether pct commands are sent to a node over SSH.
func (b BackendInputs) Remote() bool {
	return b.Kind == BackendPCT && b.SSH.Host != ""
}

// Request returns the container creation request.
func (in Inputs) Request() container.Request {
	return container.Request{
		Hostname:     in.Container.Hostname,
		CPU:          in.Container.CPU,
		RAM:          in.Container.RAM,
		Disk:         in.Container.Disk,
		OS:           in.Container.OS,
		OSVersion:    in.Container.OSVersion,
		Unprivileged: in.Container.Unprivileged,
		Tags:         in.Container.Tags,
		Bridge:       in.Backend.Bridge,
	}
}

// ShareConfig returns the share the workflow starts from.
func (in Inputs) ShareConfig() samba.Share {
	return samba.Share{
		Name:      in.Share.Name,
		MountPath: in.Share.MountPath,
		HostPath:  in.Share.HostPath,
		GuestOK:   in.Share.GuestOK,
		Writable:  in.Share.Writable,
	}
}

// YAML renders the inputs for display.
func (in Inputs) YAML() (string, error) {
	out, err := yaml.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	return string(out), nil
}

// RegisterFlags adds one string flag per key. Flags carry no default of their
// own so an unset flag falls through to the environment.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, k := range Keys {
		usage := k.Usage
		if k.Default != "" {
			usage = fmt.Sprintf("%s (env %s, default %q)", usage, k.Env, k.Default)
		} else {
			usage = fmt.Sprintf("%s (env %s)", usage, k.Env)
		}
		flags.String(k.Flag, "", usage)
	}
}

// Load reads envFiles (DefaultEnvFile when none are given) into the process
// environment without overriding variables already set, and returns a viper
// instance with every key bound to its environment variable and, when flags
// is non-nil, to its flag. Missing env files are ignored.
func Load(flags *pflag.FlagSet, envFiles ...string) (*viper.Viper, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	v := viper.New()
	for _, k := range Keys {
		v.SetDefault(k.Name, k.Default)
		if err := v.BindEnv(k.Name, k.Env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k.Env, err)
		}
		if flags == nil {
			continue
		}
		if flag := flags.Lookup(k.Flag); flag != nil {
			if err := v.BindPFlag(k.Name, flag); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", k.Flag, err)
			}
		}
	}
	return v, nil
}

// Resolve turns the bound values into Inputs. An empty flag falls through to
// the environment and an empty environment variable to the key's default.
func Resolve(v *viper.Viper) (Inputs, error) {
	get := func(name string) string {
		if value := v.GetString(name); value != "" {
			return value
		}
		k, _ := Lookup(name)
		if value := os.Getenv(k.Env); value != "" {
			return value
		}
		return k.Default
	}

	in := Inputs{
		Share: ShareInputs{
			Name:      get(KeyShareName),
			HostPath:  get(KeyHostPath),
			MountPath: get(KeyMountPath),
			GuestOK:   get(KeyGuestOK) == "yes",
			Writable:  get(KeyWritable) == "yes",
		},
		Container: ContainerInputs{
			Hostname:     get(KeyHostname),
			CPU:          get(KeyCPU),
			RAM:          get(KeyRAM),
			Disk:         get(KeyDisk),
			OS:           get(KeyOS),
			OSVersion:    get(KeyOSVersion),
			Unprivileged: get(KeyUnprivileged) == "1",
			Tags:         SplitTags(get(KeyTags)),
		},
		Backend: BackendInputs{
			Kind:            get(KeyBackend),
			Storage:         get(KeyStorage),
			TemplateStorage: get(KeyTemplateStorage),
			Bridge:          get(KeyBridge),
			SSH: SSHInputs{
				Host: get(KeySSHHost),
				User: get(KeySSHUser),
				Port: get(KeySSHPort),
				Key:  get(KeySSHKey),
			},
			Libvirt: LibvirtInput{
				URI:         get(KeyLibvirtURI),
				TemplateDir: get(KeyTemplateDir),
				RunDir:      get(KeyRunDir),
			},
		},
	}

	if in.Backend.Kind != BackendPCT && in.Backend.Kind != BackendLibvirt {
		return Inputs{}, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownBackend, in.Backend.Kind, BackendPCT, BackendLibvirt)
	}

	delay, err := ParseDelay(get(KeySettleDelay))
	if err != nil {
		return Inputs{}, err
	}
	in.SettleDelay = delay
	return in, nil
}

// ParseDelay accepts a Go duration or a whole number of seconds.
func ParseDelay(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("settle delay %q is negative", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse settle delay %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("settle delay %q is negative", value)
	}
	return d, nil
}

// SplitTags splits a ';' or ',' separated tag list, dropping empty entries.
func SplitTags(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' })
	return lo.Compact(lo.Map(fields, func(tag string, _ int) string {
		return strings.TrimSpace(tag)
	}))
}
