// Package pdf opens PDF files and reads their text and tables.
//
// We use the ledongthuc/pdf library for parsing. It's a pure Go
// implementation with no CGO or external dependencies, so deployment
// stays a single binary. Tables are not a PDF concept: DetectTables
// rebuilds them from the positioned text rows the library returns.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrInvalidPDF means the file is not a readable PDF.
	ErrInvalidPDF = errors.New("file is not a valid PDF")
	// ErrPassword means the PDF is encrypted and the password is missing or wrong.
	ErrPassword = errors.New("PDF is password protected; a correct password is required")
)

// Glyph is one positioned piece of text on a page.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// TextRow is the glyphs sharing one baseline, left to right.
type TextRow struct {
	Y      float64
	Glyphs []Glyph
}

// Page gives access to one page's content.
type Page interface {
	// Text returns the page's plain text.
	Text() (string, error)
	// Rows returns the page's text rows, top to bottom.
	Rows() ([]TextRow, error)
}

// Document is an open PDF.
type Document interface {
	NumPages() int
	// Page returns the page at a 0-based index.
	Page(index int) (Page, error)
	Close() error
}

// Opener opens PDF files. The converter depends on this interface so tests
// can substitute documents without real files.
type Opener interface {
	Open(path, password string) (Document, error)
}

// LibraryOpener opens files with ledongthuc/pdf.
type LibraryOpener struct{}

// Open opens path, decrypting it with password when one is given.
func (LibraryOpener) Open(path, password string) (doc Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			f.Close()
			doc, err = nil, fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	var reader *pdf.Reader
	if password == "" {
		reader, err = pdf.NewReader(f, info.Size())
	} else {
		reader, err = pdf.NewReaderEncrypted(f, info.Size(), oncePassword(password))
	}
	if err != nil {
		f.Close()
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, ErrPassword
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return &libraryDocument{file: f, reader: reader}, nil
}

// oncePassword yields the password on the first call and "" afterwards,
// which tells the library to stop retrying.
func oncePassword(password string) func() string {
	used := false
	return func() string {
		if used {
			return ""
		}
		used = true
		return password
	}
}

type libraryDocument struct {
	file   io.Closer
	reader *pdf.Reader
}

func (d *libraryDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *libraryDocument) Page(index int) (Page, error) {
	if index < 0 || index >= d.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range", index+1)
	}
	p := d.reader.Page(index + 1)
	if p.V.IsNull() {
		return emptyPage{}, nil
	}
	return libraryPage{page: p}, nil
}

func (d *libraryDocument) Close() error {
	return d.file.Close()
}

type libraryPage struct {
	page pdf.Page
}

func (p libraryPage) Text() (text string, err error) {
	defer recoverInto(&err)
	text, err = p.page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p libraryPage) Rows() (rows []TextRow, err error) {
	defer recoverInto(&err)
	libRows, err := p.page.GetTextByRow()
	if err != nil {
		return nil, err
	}
	for _, r := range libRows {
		row := TextRow{Y: float64(r.Position)}
		for _, t := range r.Content {
			row.Glyphs = append(row.Glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		sort.SliceStable(row.Glyphs, func(i, j int) bool { return row.Glyphs[i].X < row.Glyphs[j].X })
		rows = append(rows, row)
	}
	// PDF y grows upwards; reading order is top first.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Y > rows[j].Y })
	return rows, nil
}

type emptyPage struct{}

func (emptyPage) Text() (string, error)    { return "", nil }
func (emptyPage) Rows() ([]TextRow, error) { return nil, nil }

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
	}
}

// ValidatePDF checks if the data looks like a valid PDF by checking the magic bytes.
func ValidatePDF(data []byte) bool {
	// PDF files start with "%PDF-"
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
