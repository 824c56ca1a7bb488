// Package output renders command results for terminals and pipes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapkpi/internal/reconcile"
	"github.com/leapstack-labs/leapkpi/internal/report"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"golang.org/x/term"
)

// Mode selects the output style.
type Mode string

// Output modes.
const (
	// ModeAuto picks text on a terminal and markdown otherwise.
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Styles holds lipgloss styles for status output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Renderer writes results to out and diagnostics to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	Styles *Styles
}

// NewRenderer creates a Renderer. ModeAuto and unknown modes resolve by
// whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	switch mode {
	case ModeText, ModeMarkdown, ModeJSON:
	default:
		if IsTerminal(out) {
			mode = ModeText
		} else {
			mode = ModeMarkdown
		}
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		Styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() Mode { return r.mode }

// Out returns the result writer.
func (r *Renderer) Out() io.Writer { return r.out }

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes a titled table.
func (r *Renderer) Table(title string, t *core.Table) error {
	if r.mode == ModeJSON {
		return report.Render(r.out, report.FormatJSON, title, t.Naive())
	}
	if r.mode == ModeMarkdown {
		return report.Render(r.out, report.FormatMarkdown, title, t.Naive())
	}

	_, _ = fmt.Fprintln(r.out, r.Styles.Header.Render(title))
	if t.Len() == 0 {
		_, _ = fmt.Fprintln(r.out, r.Styles.Muted.Render("(0 rows)"))
		return nil
	}
	tw := report.NewTableWriter(t.Naive())
	tw.SetStyle(table.StyleLight)
	_, _ = fmt.Fprintln(r.out, tw.Render())
	return nil
}

// Status renders a comparison verdict.
func (r *Renderer) Status(s reconcile.Status) string {
	if s == reconcile.StatusMatch {
		return r.Styles.Success.Render(string(s))
	}
	return r.Styles.Error.Render(string(s))
}

// Summary writes the comparison summary and any differences.
func (r *Renderer) Summary(sum *reconcile.Summary) error {
	if r.mode == ModeJSON {
		return r.JSON(summaryJSON(sum))
	}
	if r.mode == ModeMarkdown {
		return report.Render(r.out, report.FormatMarkdown, "Comparison Summary", sum.Table())
	}

	_, _ = fmt.Fprintln(r.out, r.Styles.Header.Render("Comparison Summary"))
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"KPI", "Relational", "In-Memory", "Status", "Differences"})
	for _, row := range sum.Rows {
		tw.AppendRow(table.Row{row.KPI.Title(), row.RelationalRows, row.InMemoryRows, r.Status(row.Status), len(row.Differences)})
	}
	_, _ = fmt.Fprintln(r.out, tw.Render())

	for _, row := range sum.Rows {
		for _, d := range row.Differences {
			_, _ = fmt.Fprintln(r.out, r.Styles.Muted.Render("  "+d.String()))
		}
	}
	if sum.AllMatch {
		r.Success("all KPIs match")
	} else {
		r.Warn("mismatched KPIs: " + joinKPIs(sum.Mismatched()))
	}
	return nil
}

// Warnings writes data-quality warnings to the diagnostics stream.
func (r *Renderer) Warnings(ws []core.Warning) {
	for _, w := range ws {
		r.Warn(w.String())
	}
}

// Success prints a success line.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles.Success.Render("✓")+" "+msg)
}

// Warn prints a warning line.
func (r *Renderer) Warn(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles.Warning.Render("! "+msg))
}

// Error prints an error line.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles.Error.Render("Error: ")+msg)
}

// Info prints a muted line.
func (r *Renderer) Info(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.Styles.Muted.Render(msg))
}

func joinKPIs(names []core.KPIName) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n.Title()
	}
	return strings.Join(parts, ", ")
}

type summaryRowJSON struct {
	KPI            string   `json:"kpi"`
	RelationalRows int      `json:"relational_rows"`
	InMemoryRows   int      `json:"in_memory_rows"`
	Status         string   `json:"status"`
	Differences    []string `json:"differences,omitempty"`
}

type summaryOutput struct {
	AllMatch bool             `json:"all_match"`
	KPIs     []summaryRowJSON `json:"kpis"`
}

func summaryJSON(sum *reconcile.Summary) summaryOutput {
	out := summaryOutput{AllMatch: sum.AllMatch, KPIs: make([]summaryRowJSON, 0, len(sum.Rows))}
	for _, r := range sum.Rows {
		row := summaryRowJSON{
			KPI:            string(r.KPI),
			RelationalRows: r.RelationalRows,
			InMemoryRows:   r.InMemoryRows,
			Status:         string(r.Status),
		}
		for _, d := range r.Differences {
			row.Differences = append(row.Differences, d.String())
		}
		out.KPIs = append(out.KPIs, row)
	}
	return out
}
