package container

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cochaviz/sambalxc/arch"
)

// resolveTemplate returns the volume id of an OS template for osName/version,
// downloading the newest matching template into the template storage when none
// is present yet.
func (d *PCTDriver) resolveTemplate(ctx context.Context, osName, version string) (string, error) {
	storage := d.templateStorage()
	prefix := templatePrefix(osName, version)
	suffix := d.templateArchSuffix()
	logger := d.logger().With("template_prefix", prefix, "storage", storage)

	out, err := d.Runner.Run(ctx, "pveam", "list", storage)
	if err != nil {
		return "", fmt.Errorf("list templates on %s: %w", storage, err)
	}
	if volid := matchLocalTemplate(out, storage, prefix, suffix); volid != "" {
		logger.Debug("using cached template", "volid", volid)
		return volid, nil
	}

	if _, err := d.Runner.Run(ctx, "pveam", "update"); err != nil {
		logger.Warn("refreshing template index failed; using existing index", "error", err)
	}
	out, err = d.Runner.Run(ctx, "pveam", "available", "--section", "system")
	if err != nil {
		return "", fmt.Errorf("list available templates: %w", err)
	}
	name := matchAvailableTemplate(out, prefix, suffix)
	if name == "" {
		return "", fmt.Errorf("%w: %s*%s", ErrTemplateNotFound, prefix, suffix)
	}

	logger.Info("downloading template", "template", name)
	if _, err := d.Runner.Run(ctx, "pveam", "download", storage, name); err != nil {
		return "", fmt.Errorf("download template %s: %w", name, err)
	}
	return fmt.Sprintf("%s:vztmpl/%s", storage, name), nil
}

func (d *PCTDriver) templateArchSuffix() string {
	a := d.Arch
	if a == "" {
		a = arch.Host()
	}
	return "_" + a.Debian() + ".tar"
}

func templatePrefix(osName, version string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(osName), version)
}

// matchLocalTemplate scans `pveam list <storage>` output, whose first column is
// the volume id (<storage>:vztmpl/<file>).
func matchLocalTemplate(output, storage, prefix, suffix string) string {
	want := fmt.Sprintf("%s:vztmpl/%s", storage, prefix)
	var matches []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if isTemplateMatch(fields[0], want, suffix) {
			matches = append(matches, fields[0])
		}
	}
	return newest(matches)
}

// matchAvailableTemplate scans `pveam available` output, whose second column is
// the template file name.
func matchAvailableTemplate(output, prefix, suffix string) string {
	var matches []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if isTemplateMatch(fields[1], prefix, suffix) {
			matches = append(matches, fields[1])
		}
	}
	return newest(matches)
}

// isTemplateMatch requires the version to be followed by a separator so that
// debian-1 does not match debian-12.
func isTemplateMatch(name, prefix, suffix string) bool {
	if !strings.HasPrefix(name, prefix) || !strings.Contains(name, suffix) {
		return false
	}
	rest := strings.TrimPrefix(name, prefix)
	return strings.HasPrefix(rest, "-") || strings.HasPrefix(rest, "_") || strings.HasPrefix(rest, ".")
}

func newest(names []string) string {
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[len(names)-1]
}
