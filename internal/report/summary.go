// Package report prints the operator summary at the end of a provisioning run.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/cochaviz/sambalxc/internal/provision"
	"github.com/cochaviz/sambalxc/internal/samba"
)

const labelWidth = 14

type Options struct {
	// NoColor forces plain output even on a terminal.
	NoColor bool
}

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	cmd   lipgloss.Style
}

func newStyles(w io.Writer, opts Options) styles {
	r := lipgloss.NewRenderer(w)
	if opts.NoColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		label: r.NewStyle().Width(labelWidth).Foreground(lipgloss.Color("214")),
		value: r.NewStyle(),
		good:  r.NewStyle().Foreground(lipgloss.Color("42")),
		bad:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		cmd:   r.NewStyle().Foreground(lipgloss.Color("39")),
	}
}

// Render writes the summary block for s to w.
func Render(w io.Writer, s provision.Summary, opts Options) error {
	st := newStyles(w, opts)
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString("  ")
		b.WriteString(st.label.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	b.WriteString(st.title.Render("Samba share provisioned"))
	b.WriteByte('\n')

	row("Container", st.value.Render(fmt.Sprintf("%s (%s)", s.Handle.ID, s.Handle.IP)))
	if s.Hostname != "" {
		row("Hostname", st.value.Render(s.Hostname))
	}
	row("Share", st.value.Render(s.Share.Name))
	row("Windows", st.cmd.Render(samba.UNCPath(s.Handle.IP, s.Share)))
	row("macOS/Linux", st.cmd.Render(samba.SMBURL(s.Handle.IP, s.Share)))
	row("Data", st.value.Render(samba.DataSource(s.Share)))
	if s.Share.Detached() {
		row("", st.bad.Render("host path could not be attached; data is kept inside the container"))
	}
	row("Guest access", st.value.Render(enabled(s.Share.GuestOK)))
	row("Writable", st.value.Render(samba.YesNo(s.Share.Writable)))
	if s.ServiceHealthy {
		row("Service", st.good.Render(samba.ServiceUnit+" running"))
	} else {
		row("Service", st.bad.Render(fmt.Sprintf("%s not running, check logs in %s", samba.ServiceUnit, samba.LogDir)))
	}

	if s.AddUserHint != "" {
		b.WriteByte('\n')
		b.WriteString("Guest access is disabled. Add an authenticated Samba user with:\n")
		b.WriteString("  ")
		b.WriteString(st.cmd.Render(s.AddUserHint))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
