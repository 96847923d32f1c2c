package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jerin288/jdt-tool-web/internal/services/pdf"
	"github.com/jerin288/jdt-tool-web/internal/services/pdf/pdftest"
)

type fakePage struct {
	text string
	rows []pdf.TextRow
}

func (p fakePage) Text() (string, error)        { return p.text, nil }
func (p fakePage) Rows() ([]pdf.TextRow, error) { return p.rows, nil }

type fakeDoc struct {
	pages  []fakePage
	closed bool
}

func (d *fakeDoc) NumPages() int { return len(d.pages) }
func (d *fakeDoc) Page(i int) (pdf.Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, errors.New("out of range")
	}
	return d.pages[i], nil
}
func (d *fakeDoc) Close() error { d.closed = true; return nil }

type fakeOpener struct {
	doc      *fakeDoc
	err      error
	password string
}

func (o *fakeOpener) Open(_ string, password string) (pdf.Document, error) {
	o.password = password
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

// tableRows lays out a grid with one whole-string glyph per cell.
func tableRows(top float64, grid [][]string) []pdf.TextRow {
	var rows []pdf.TextRow
	for r, cells := range grid {
		row := pdf.TextRow{Y: top - float64(r)*14}
		for c, s := range cells {
			row.Glyphs = append(row.Glyphs, pdf.Glyph{X: 72 + float64(c)*150, S: s})
		}
		rows = append(rows, row)
	}
	return rows
}

type recorder struct {
	mu       sync.Mutex
	percents []int
	messages []string
}

func (r *recorder) Progress(p int, m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percents = append(r.percents, p)
	r.messages = append(r.messages, m)
}

func twoPageDoc() *fakeDoc {
	return &fakeDoc{pages: []fakePage{
		{text: "Invoice 42", rows: tableRows(700, [][]string{{"Name", "Age"}, {"Alice", "30"}})},
		{text: "", rows: tableRows(700, [][]string{{"Age", "City"}, {"25", "Paris"}, {"41", "Oslo"}})},
	}}
}

var outputName = regexp.MustCompile(`^converted_[0-9a-f]{8}\.(xlsx|csv)$`)

func TestConvert_TablesAndText(t *testing.T) {
	dir := t.TempDir()
	doc := twoPageDoc()
	opener := &fakeOpener{doc: doc}
	rec := &recorder{}

	opts := DefaultOptions()
	opts.ExtractMode = ModeBoth
	opts.Password = "  secret "

	res, err := New(opener, dir).Convert(context.Background(), "in.pdf", opts, rec)
	require.NoError(t, err)

	assert.True(t, doc.closed)
	assert.Equal(t, "secret", opener.password)
	assert.Regexp(t, outputName, res.OutputFile)
	assert.Equal(t, 2, res.TableCount)
	assert.Equal(t, 1, res.TextCount)
	assert.Equal(t, []string{"Name", "Age"}, res.Preview.Columns)
	assert.Equal(t, 1, res.Preview.TotalRows)

	assert.Equal(t, []int{10, 20, 30, 55, 80, 90}, rec.percents)
	assert.Equal(t, "Extracting data from 2 pages...", rec.messages[2])
	assert.Equal(t, "Processing page 2 of 2...", rec.messages[4])

	f, err := excelize.OpenFile(filepath.Join(dir, res.OutputFile))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Table_1", "Table_2", TextSheet}, f.GetSheetList())
}

func TestConvert_MergeToCSV(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	opts := DefaultOptions()
	opts.MergeTables = true
	opts.OutputFormat = FormatCSV

	res, err := New(&fakeOpener{doc: twoPageDoc()}, dir).Convert(context.Background(), "in.pdf", opts, rec)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TableCount)
	assert.Equal(t, 0, res.TextCount)
	assert.Equal(t, []string{"Name", "Age", "City"}, res.Preview.Columns)
	assert.Equal(t, 3, res.Preview.TotalRows)
	assert.Contains(t, rec.messages, "Merging tables...")

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "Name,Age,City\nAlice,30,\n,25,Paris\n,41,Oslo\n", string(data))
}

func TestConvert_PageRangeAndTextPreview(t *testing.T) {
	doc := &fakeDoc{}
	for i := 0; i < 8; i++ {
		doc.pages = append(doc.pages, fakePage{text: "page text"})
	}
	opts := DefaultOptions()
	opts.ExtractMode = ModeText
	opts.PageRange = "2-8"

	res, err := New(&fakeOpener{doc: doc}, t.TempDir()).Convert(context.Background(), "in.pdf", opts, nil)
	require.NoError(t, err)

	assert.Equal(t, 7, res.TextCount)
	require.Len(t, res.Preview.TextPreview, 5)
	assert.Equal(t, 2, res.Preview.TextPreview[0].Page)
	assert.Empty(t, res.Preview.Columns)
}

func TestConvert_Errors(t *testing.T) {
	openErr := errors.New("boom")

	tests := []struct {
		name    string
		opener  *fakeOpener
		opts    func(*Options)
		wantErr error
	}{
		{
			name:    "no data",
			opener:  &fakeOpener{doc: &fakeDoc{pages: []fakePage{{text: ""}}}},
			wantErr: ErrNoData,
		},
		{
			name:    "text only mode ignores tables",
			opener:  &fakeOpener{doc: &fakeDoc{pages: []fakePage{{rows: tableRows(700, [][]string{{"a", "b"}, {"c", "d"}})}}}},
			opts:    func(o *Options) { o.ExtractMode = ModeText },
			wantErr: ErrNoData,
		},
		{
			name:    "open failure",
			opener:  &fakeOpener{err: openErr},
			wantErr: openErr,
		},
		{
			name:    "bad page range",
			opener:  &fakeOpener{doc: twoPageDoc()},
			opts:    func(o *Options) { o.PageRange = "x" },
			wantErr: ErrInvalidPageRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			_, err := New(tt.opener, dir).Convert(context.Background(), "in.pdf", opts, nil)
			assert.ErrorIs(t, err, tt.wantErr)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries, "no output left behind")
		})
	}
}

func TestConvert_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeOpener{doc: twoPageDoc()}, t.TempDir()).Convert(ctx, "in.pdf", DefaultOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvert_RealPDF(t *testing.T) {
	dir := t.TempDir()
	lines := pdftest.Table(0, 700, 180, [][]string{
		{"Product", "Price"},
		{"Tea", "3.50"},
		{"Cake", "4.25"},
	})
	path := pdftest.Write(t, dir, "menu.pdf", 1, lines)

	opts := DefaultOptions()
	opts.OutputFormat = FormatCSV
	res, err := New(pdf.LibraryOpener{}, dir).Convert(context.Background(), path, opts, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "Product,Price\nTea,3.50\nCake,4.25\n", string(data))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Options) {}},
		{name: "both csv", mutate: func(o *Options) { o.ExtractMode = ModeBoth; o.OutputFormat = FormatCSV }},
		{name: "bad mode", mutate: func(o *Options) { o.ExtractMode = "images" }, wantErr: true},
		{name: "bad format", mutate: func(o *Options) { o.OutputFormat = "pdf" }, wantErr: true},
		{name: "bad range", mutate: func(o *Options) { o.PageRange = "1-z" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			if err := o.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "No data found in the PDF!", UserMessage(ErrNoData))
	assert.Equal(t, "An error occurred during conversion: boom", UserMessage(errors.New("boom")))
}
