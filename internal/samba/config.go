package samba

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/samber/lo"
)

// Workgroup is fixed; shares join the default Windows workgroup.
const Workgroup = "WORKGROUP"

//go:embed smb.conf.tmpl
var configTemplateSrc string

var configTemplate = template.Must(template.New("smb.conf").Parse(configTemplateSrc))

type configTemplateData struct {
	Workgroup    string
	Hostname     string
	GuestAccount string
	ShareName    string
	Path         string
	Writable     string
	GuestOK      string
	ReadOnly     string
}

// RenderConfig returns smb.conf with one global section and one section for
// share. The share path is always the in-container mount path, whatever backs it.
func RenderConfig(hostname string, share Share) (string, error) {
	data := configTemplateData{
		Workgroup:    Workgroup,
		Hostname:     hostname,
		GuestAccount: GuestAccount,
		ShareName:    share.Name,
		Path:         share.MountPath,
		Writable:     YesNo(share.Writable),
		GuestOK:      YesNo(share.GuestOK),
		ReadOnly:     YesNo(share.ReadOnly()),
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render samba config: %w", err)
	}
	return buf.String(), nil
}

// YesNo serializes a flag the way smb.conf spells booleans.
func YesNo(b bool) string {
	return lo.Ternary(b, "yes", "no")
}
