// Package converter turns PDF pages into spreadsheet files.
//
// A conversion opens the document, walks the selected pages collecting
// tables and/or text, optionally merges the tables, and writes an xlsx or
// csv file into the work directory. Progress is reported through a
// Reporter so callers can publish it while the job runs.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/pdf"
)

// ErrNoData means neither tables nor text were found.
var ErrNoData = errors.New("no data found in the PDF")

// ExtractMode selects what to pull out of each page.
type ExtractMode string

const (
	ModeTables ExtractMode = "tables"
	ModeText   ExtractMode = "text"
	ModeBoth   ExtractMode = "both"
)

// Format is the output file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Preview limits.
const (
	previewRows  = 50
	previewPages = 5
)

// Options control one conversion.
type Options struct {
	PageRange      string
	ExtractMode    ExtractMode
	MergeTables    bool
	IncludeHeaders bool
	CleanData      bool
	Password       string
	OutputFormat   Format
}

// DefaultOptions returns the options used for fields a request leaves out.
func DefaultOptions() Options {
	return Options{
		PageRange:      "all",
		ExtractMode:    ModeTables,
		IncludeHeaders: true,
		CleanData:      true,
		OutputFormat:   FormatXLSX,
	}
}

// Validate rejects unknown modes, formats and malformed page ranges.
func (o Options) Validate() error {
	switch o.ExtractMode {
	case ModeTables, ModeText, ModeBoth:
	default:
		return fmt.Errorf("invalid extract_mode %q: use tables, text or both", o.ExtractMode)
	}
	switch o.OutputFormat {
	case FormatXLSX, FormatCSV:
	default:
		return fmt.Errorf("invalid output_format %q: use xlsx or csv", o.OutputFormat)
	}
	return ValidatePageRange(o.PageRange)
}

func (o Options) wantTables() bool { return o.ExtractMode == ModeTables || o.ExtractMode == ModeBoth }
func (o Options) wantText() bool   { return o.ExtractMode == ModeText || o.ExtractMode == ModeBoth }

// Reporter receives progress as a conversion runs.
type Reporter interface {
	Progress(percent int, message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(percent int, message string)

// Progress calls f.
func (f ReporterFunc) Progress(percent int, message string) { f(percent, message) }

// Result describes a finished conversion.
type Result struct {
	OutputFile string // base name inside the work directory
	OutputPath string
	TableCount int
	TextCount  int
	Preview    *models.Preview
}

// Converter runs conversions.
type Converter struct {
	opener  pdf.Opener
	workDir string
}

// New creates a Converter writing into workDir.
func New(opener pdf.Opener, workDir string) *Converter {
	return &Converter{opener: opener, workDir: workDir}
}

// WorkDir is where output files are written.
func (c *Converter) WorkDir() string {
	return c.workDir
}

// Convert runs one conversion of the PDF at pdfPath.
func (c *Converter) Convert(ctx context.Context, pdfPath string, opts Options, report Reporter) (*Result, error) {
	if report == nil {
		report = ReporterFunc(func(int, string) {})
	}
	report.Progress(10, "Starting conversion...")

	report.Progress(20, "Opening PDF...")
	doc, err := c.opener.Open(pdfPath, strings.TrimSpace(opts.Password))
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.NumPages()
	pages, err := ParsePageRange(opts.PageRange, total)
	if err != nil {
		return nil, err
	}

	report.Progress(30, fmt.Sprintf("Extracting data from %d pages...", len(pages)))

	var (
		tables []*Table
		texts  []models.PageText
	)
	step := 50.0
	if len(pages) > 0 {
		step = 50.0 / float64(len(pages))
	}
	current := 30.0

	for _, idx := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := doc.Page(idx)
		if err != nil {
			return nil, err
		}

		if opts.wantTables() {
			rows, err := page.Rows()
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", idx+1, err)
			}
			for _, raw := range pdf.DetectTables(rows) {
				t := BuildTable(raw, opts.IncludeHeaders)
				if opts.CleanData {
					t.Clean()
				}
				if !t.Empty() {
					tables = append(tables, t)
				}
			}
		}

		if opts.wantText() {
			text, err := page.Text()
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", idx+1, err)
			}
			if text != "" {
				texts = append(texts, models.PageText{Page: idx + 1, Text: text})
			}
		}

		current += step
		report.Progress(min(80, int(current)), fmt.Sprintf("Processing page %d of %d...", idx+1, total))
	}

	if len(tables) == 0 && len(texts) == 0 {
		return nil, ErrNoData
	}

	merged := opts.MergeTables && len(tables) > 0
	if merged {
		report.Progress(85, "Merging tables...")
		tables = []*Table{MergeTables(tables)}
	}

	report.Progress(90, "Saving file...")
	name := OutputName(opts.OutputFormat)
	path := filepath.Join(c.workDir, name)

	if opts.OutputFormat == FormatCSV {
		err = WriteCSV(path, tables, texts)
	} else {
		err = WriteXLSX(path, tables, texts, merged)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &Result{
		OutputFile: name,
		OutputPath: path,
		TableCount: len(tables),
		TextCount:  len(texts),
		Preview:    buildPreview(tables, texts),
	}, nil
}

// OutputName returns a fresh converted_<8 hex>.<format> file name.
func OutputName(format Format) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "converted_" + id[:8] + "." + string(format)
}

func buildPreview(tables []*Table, texts []models.PageText) *models.Preview {
	if len(tables) > 0 {
		t := tables[0]
		rows := t.Rows
		if len(rows) > previewRows {
			rows = rows[:previewRows]
		}
		return &models.Preview{Columns: t.Columns, Rows: rows, TotalRows: len(t.Rows)}
	}
	if len(texts) > previewPages {
		texts = texts[:previewPages]
	}
	return &models.Preview{TextPreview: texts}
}

// UserMessage is the text shown to the user when a conversion fails.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return "No data found in the PDF!"
	default:
		return "An error occurred during conversion: " + err.Error()
	}
}
