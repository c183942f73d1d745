package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cockroachdb/errors"

	"github.com/lexfrei/go-fpp/fpperr"
)

// Palette, shared with the status colors of the FPP web UI.
const (
	colorAccent  = "#7aa2f7"
	colorMuted   = "#737aa2"
	colorSuccess = "#9ece6a"
	colorWarning = "#e0af68"
	colorDanger  = "#f7768e"
)

type styles struct {
	renderer *lipgloss.Renderer
	key      lipgloss.Style
	value    lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	muted    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	danger   lipgloss.Style
}

// newStyles binds the styles to w so color is dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)

	return styles{
		renderer: r,
		key:      r.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		value:    r.NewStyle(),
		header:   r.NewStyle().Foreground(lipgloss.Color(colorAccent)).Bold(true).Padding(0, 1),
		cell:     r.NewStyle().Padding(0, 1),
		muted:    r.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		success:  r.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color(colorWarning)),
		danger:   r.NewStyle().Foreground(lipgloss.Color(colorDanger)).Bold(true),
	}
}

// statusStyle colors an fppd status name.
func (s styles) statusStyle(status string) lipgloss.Style {
	switch strings.ToLower(status) {
	case "playing":
		return s.success
	case "paused", "stopping gracefully":
		return s.warning
	case "idle", "stopped":
		return s.muted
	default:
		return s.value
	}
}

type field struct {
	key   string
	value string
	style *lipgloss.Style
}

func kv(key, value string) field { return field{key: key, value: value} }

func (a *app) printFields(fields []field) {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.key))
	}

	keyStyle := a.styles.key.Width(width + 2)
	for _, f := range fields {
		value := f.value
		if value == "" {
			value = "-"
		}
		style := a.styles.value
		if f.style != nil {
			style = *f.style
		}
		fmt.Fprintln(a.stdout, keyStyle.Render(f.key)+style.Render(value))
	}
}

func (a *app) printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(a.stdout, a.styles.muted.Render("(none)"))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(a.styles.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return a.styles.header
			}
			return a.styles.cell
		})

	fmt.Fprintln(a.stdout, t.Render())
}

func (a *app) printList(items []string) {
	if len(items) == 0 {
		fmt.Fprintln(a.stdout, a.styles.muted.Render("(none)"))
		return
	}
	for _, item := range items {
		fmt.Fprintln(a.stdout, item)
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}

// output prints v as JSON under --json and calls human otherwise.
func (a *app) output(v any, human func()) error {
	if a.opts.jsonOutput {
		return a.printJSON(v)
	}
	human()
	return nil
}

func (a *app) printError(err error) {
	kind := fpperr.Classify(err)

	if a.opts.jsonOutput {
		enc := json.NewEncoder(a.stderr)
		_ = enc.Encode(map[string]string{"error": err.Error(), "kind": kind.String()})
		return
	}

	r := lipgloss.NewRenderer(a.stderr)
	label := r.NewStyle().Foreground(lipgloss.Color(colorDanger)).Bold(true).Render("error:")
	fmt.Fprintln(a.stderr, label, err.Error())
}
