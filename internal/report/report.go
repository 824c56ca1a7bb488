// Package report writes KPI tables and the comparison summary to files.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/leapkpi/pkg/core"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatXLSX     Format = "xlsx"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatHTML, FormatText, FormatJSON, FormatXLSX}

// ParseFormat validates a format name. "md" is accepted for markdown and
// "excel" for xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatMarkdown, FormatHTML, FormatText, FormatJSON, FormatXLSX:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "excel":
		return FormatXLSX, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Export is one table to write.
type Export struct {
	// File is the base name without extension.
	File  string
	Title string
	// Workbook and Sheet place the table in an xlsx file; exports sharing a
	// workbook become sheets of one file. Other formats ignore them.
	Workbook string
	Sheet    string
	Table    *core.Table
}

// Writer writes report files into a directory.
type Writer struct {
	dir    string
	format Format
	logger *slog.Logger
}

// NewWriter creates a Writer. If logger is nil, a discard logger is used.
func NewWriter(dir string, format Format, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{dir: dir, format: format, logger: logger}
}

// Write writes every export concurrently and returns the file paths in
// input order. For xlsx one path is returned per workbook. Timestamps are
// written as naive wall clocks.
func (w *Writer) Write(ctx context.Context, exports []Export) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if w.format == FormatXLSX {
		return w.writeWorkbooks(ctx, exports)
	}

	paths := make([]string, len(exports))
	g, ctx := errgroup.WithContext(ctx)
	for i, e := range exports {
		path := filepath.Join(w.dir, e.File+w.format.Ext())
		paths[i] = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeFile(path, w.format, e.Title, e.Table.Naive()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			w.logger.Debug("report written", slog.String("path", path), slog.Int("rows", e.Table.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeFile(path string, format Format, title string, t *core.Table) (err error) {
	f, err := os.Create(path) //nolint:gosec // output directory comes from configuration
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Render(f, format, title, t)
}

// Render writes t to out in the given format.
func Render(out io.Writer, format Format, title string, t *core.Table) error {
	switch format {
	case FormatJSON:
		return renderJSON(out, t)
	case FormatXLSX:
		return renderXLSX(out, title, t)
	}

	tw := NewTableWriter(t)
	switch format {
	case FormatCSV:
		_, err := fmt.Fprintln(out, tw.RenderCSV())
		return err
	case FormatMarkdown:
		_, err := fmt.Fprintf(out, "## %s\n\n%s\n", title, tw.RenderMarkdown())
		return err
	case FormatHTML:
		tw.SetTitle("%s", title)
		_, err := fmt.Fprintln(out, tw.RenderHTML())
		return err
	case FormatText:
		tw.SetTitle("%s", title)
		tw.SetStyle(table.StyleLight)
		_, err := fmt.Fprintln(out, tw.Render())
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// NewTableWriter loads t into a go-pretty table writer.
func NewTableWriter(t *core.Table) table.Writer {
	tw := table.NewWriter()
	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)
	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = core.FormatValue(v)
		}
		tw.AppendRow(r)
	}
	return tw
}

func renderJSON(out io.Writer, t *core.Table) error {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				rec[c] = jsonValue(row[i])
			}
		}
		records = append(records, rec)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func jsonValue(v any) any {
	switch v.(type) {
	case string, int64, nil:
		return v
	default:
		return core.FormatValue(v)
	}
}

var titleCaser = cases.Title(language.English)

// Title formats a file or table name for display.
func Title(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// KPIExports lists the KPI tables of one engine in report order. Files are
// named <engine>_<kpi>; in xlsx they are the sheets of <engine>_kpis.
func KPIExports(engine string, tables map[core.KPIName]*core.Table) []Export {
	out := make([]Export, 0, len(core.AllKPIs))
	for _, name := range core.AllKPIs {
		t, ok := tables[name]
		if !ok {
			continue
		}
		out = append(out, Export{
			File:     engine + "_" + string(name),
			Title:    fmt.Sprintf("%s (%s)", name.Title(), Title(engine)),
			Workbook: engine + "_kpis",
			Sheet:    name.Title(),
			Table:    t,
		})
	}
	return out
}

// SummaryExport is the comparison summary file.
func SummaryExport(t *core.Table) Export {
	title := Title(string(t.Name))
	return Export{File: string(t.Name), Title: title, Workbook: string(t.Name), Sheet: title, Table: t}
}
