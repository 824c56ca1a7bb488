package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// maxSheetName is the longest sheet name a workbook accepts.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// SheetName turns a title into a valid worksheet name: forbidden characters
// are replaced and the result is cut to 31 characters.
func SheetName(title string) string {
	name := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = strings.TrimSpace(string(r[:maxSheetName]))
	}
	return strings.Trim(name, "'")
}

type workbook struct {
	file   string
	sheets []Export
}

// groupWorkbooks collects exports into workbooks in first-seen order. An
// export without a workbook gets one of its own.
func groupWorkbooks(exports []Export) []*workbook {
	var books []*workbook
	byFile := make(map[string]*workbook)
	for _, e := range exports {
		file := e.Workbook
		if file == "" {
			file = e.File
		}
		b, ok := byFile[file]
		if !ok {
			b = &workbook{file: file}
			byFile[file] = b
			books = append(books, b)
		}
		b.sheets = append(b.sheets, e)
	}
	return books
}

// writeWorkbooks writes one xlsx file per workbook with one sheet per export.
func (w *Writer) writeWorkbooks(ctx context.Context, exports []Export) ([]string, error) {
	books := groupWorkbooks(exports)
	paths := make([]string, len(books))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range books {
		path := filepath.Join(w.dir, b.file+FormatXLSX.Ext())
		paths[i] = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := newWorkbook(b.sheets)
			if err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			defer func() { _ = f.Close() }()
			if err := f.SaveAs(path); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			w.logger.Debug("workbook written", slog.String("path", path), slog.Int("sheets", len(b.sheets)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func renderXLSX(out io.Writer, title string, t *core.Table) error {
	f, err := newWorkbook([]Export{{Sheet: title, Title: title, Table: t}})
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.Write(out)
}

func newWorkbook(sheets []Export) (*excelize.File, error) {
	f := excelize.NewFile()
	first := f.GetSheetName(0)

	used := make(map[string]bool, len(sheets))
	for i, e := range sheets {
		title := e.Sheet
		if title == "" {
			title = e.Title
		}
		name := uniqueSheetName(SheetName(title), used)

		idx, err := f.NewSheet(name)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeSheet(f, name, e.Table.Naive()); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	if len(sheets) > 0 && !used[strings.ToLower(first)] {
		if err := f.DeleteSheet(first); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// writeSheet writes a header row then one row per table row. Money is written
// as a number, timestamps as dates.
func writeSheet(f *excelize.File, sheet string, t *core.Table) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = xlsxValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

func xlsxValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time:
		return val
	case string, int64, nil:
		return val
	default:
		return core.FormatValue(v)
	}
}
