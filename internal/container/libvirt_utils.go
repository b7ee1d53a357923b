package container

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/sys/unix"
	libvirt "libvirt.org/go/libvirt"

	"github.com/cochaviz/sambalxc/arch"
)

type domainMount struct {
	Source string
	Target string
}

type domainTemplateData struct {
	Name         string
	Description  string
	MemoryMiB    string
	VCPUs        string
	Arch         string
	Rootfs       string
	Bridge       string
	Unprivileged bool
	IDMapTarget  int
	IDMapCount   int
	Mounts       []domainMount
}

var domainTemplateFuncs = template.FuncMap{
	"xml": func(v any) (string, error) {
		var b strings.Builder
		if err := xml.EscapeText(&b, []byte(fmt.Sprint(v))); err != nil {
			return "", err
		}
		return b.String(), nil
	},
}

func renderDomainXML(templateSrc string, data domainTemplateData) ([]byte, error) {
	if templateSrc == "" {
		return nil, errors.New("domain template source is empty")
	}

	tmpl, err := template.New("domain").Funcs(domainTemplateFuncs).Parse(templateSrc)
	if err != nil {
		return nil, fmt.Errorf("parse domain template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute domain template: %w", err)
	}
	return buf.Bytes(), nil
}

func buildDomainTemplateData(name, rootfs string, a arch.Architecture, req Request) (domainTemplateData, error) {
	if name == "" {
		return domainTemplateData{}, errors.New("domain name is required")
	}
	if rootfs == "" {
		return domainTemplateData{}, errors.New("rootfs path is required")
	}
	if req.RAM == "" {
		return domainTemplateData{}, errors.New("memory size is not set in the request")
	}
	if req.CPU == "" {
		return domainTemplateData{}, errors.New("cpu count is not set in the request")
	}

	bridge := req.Bridge
	if bridge == "" {
		bridge = "virbr0"
	}
	if a == "" {
		a = arch.Host()
	}

	return domainTemplateData{
		Name:         name,
		Description:  strings.Join(req.Tags, ";"),
		MemoryMiB:    req.RAM,
		VCPUs:        req.CPU,
		Arch:         a.String(),
		Rootfs:       rootfs,
		Bridge:       bridge,
		Unprivileged: req.Unprivileged,
		IDMapTarget:  UnprivilegedIDOffset,
		IDMapCount:   UnprivilegedIDCount,
	}, nil
}

func ensureRunDirectory(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("run directory is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve run directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create run directory %q: %w", abs, err)
	}
	return abs, nil
}

// findTemplateArchive returns the newest rootfs tarball in dir named
// <os>-<version>...<dpkg arch>.tar.*
func findTemplateArchive(dir, osName, version string, a arch.Architecture) (string, error) {
	if a == "" {
		a = arch.Host()
	}
	prefix := templatePrefix(osName, version)
	suffix := "_" + a.Debian() + ".tar"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read template directory %s: %w", dir, err)
	}
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isTemplateMatch(entry.Name(), prefix, suffix) {
			matches = append(matches, entry.Name())
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s*%s in %s", ErrTemplateNotFound, prefix, suffix, dir)
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[len(matches)-1]), nil
}

// extractTemplate unpacks archive into rootfs with tar, which detects the
// compression from the archive itself.
func (d *LibvirtDriver) extractTemplate(ctx context.Context, archive, rootfs string) error {
	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return fmt.Errorf("create rootfs %s: %w", rootfs, err)
	}
	if _, err := d.runner().Run(ctx, "tar", "--numeric-owner", "-xpf", archive, "-C", rootfs); err != nil {
		return fmt.Errorf("extract template %s: %w", archive, err)
	}
	return nil
}

// shiftOwnership moves every file under root into the unprivileged UID/GID
// range. chown clears setuid/setgid bits, so the mode is restored afterwards.
func shiftOwnership(root string, offset int) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		var st unix.Stat_t
		if err := unix.Lstat(path, &st); err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		uid := int(st.Uid) + offset
		gid := int(st.Gid) + offset
		if err := unix.Lchown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		if st.Mode&unix.S_IFMT == unix.S_IFLNK {
			return nil
		}
		if err := unix.Chmod(path, st.Mode&0o7777); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
		return nil
	})
}

func isLibvirtError(err error, codes ...libvirt.ErrorNumber) bool {
	var lvErr libvirt.Error
	if !errors.As(err, &lvErr) {
		return false
	}
	for _, code := range codes {
		if lvErr.Code == code {
			return true
		}
	}
	return false
}
