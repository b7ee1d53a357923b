package arch

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Architecture is the canonical (libvirt) name of a container architecture.
type Architecture string

const (
	X86_64  Architecture = "x86_64"
	I686    Architecture = "i686"
	AArch64 Architecture = "aarch64"
	ARMV7L  Architecture = "armv7l"
)

// Supported returns the architectures container templates are published for.
func Supported() []Architecture {
	return []Architecture{
		X86_64,
		I686,
		AArch64,
		ARMV7L,
	}
}

// String returns the architecture as string.
func (a Architecture) String() string {
	return string(a)
}

// Debian returns the dpkg architecture label used in container template file names
// (for example debian-12-standard_12.7-1_amd64.tar.zst).
func (a Architecture) Debian() string {
	switch a {
	case X86_64:
		return "amd64"
	case I686:
		return "i386"
	case AArch64:
		return "arm64"
	case ARMV7L:
		return "armhf"
	default:
		return ""
	}
}

// Parse returns the canonical Architecture for the provided string or an error if unsupported.
func Parse(value string) (Architecture, error) {
	if arch := Normalize(value); arch != "" {
		return arch, nil
	}
	return "", fmt.Errorf("unsupported architecture %q (supported: %s)", value, strings.Join(supportedStrings(), ", "))
}

// Normalize maps a libvirt, dpkg or Go architecture name into a canonical
// Architecture. Returns "" when the string cannot be normalized.
func Normalize(value string) Architecture {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(X86_64), "x86-64", "amd64":
		return X86_64
	case "x86", "i386", "386", string(I686):
		return I686
	case string(AArch64), "arm64":
		return AArch64
	case string(ARMV7L), "arm", "armv7", "armhf":
		return ARMV7L
	default:
		return ""
	}
}

// Host returns the architecture of the machine running the binary, falling back
// to x86_64 for platforms no template is published for.
func Host() Architecture {
	if a := Normalize(runtime.GOARCH); a != "" {
		return a
	}
	return X86_64
}

func supportedStrings() []string {
	all := Supported()
	out := make([]string, 0, len(all))
	for _, a := range all {
		out = append(out, a.String())
	}
	sort.Strings(out)
	return out
}
