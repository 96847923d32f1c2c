package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerin288/jdt-tool-web/internal/services/pdf/pdftest"
)

// TestValidatePDF checks magic-byte detection.
func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "valid header", data: []byte("%PDF-1.7\n..."), want: true},
		{name: "exactly five bytes", data: []byte("%PDF-"), want: true},
		{name: "too short", data: []byte("%PD"), want: false},
		{name: "png", data: []byte("\x89PNG\r\n\x1a\n"), want: false},
		{name: "empty", data: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePDF(tt.data); got != tt.want {
				t.Errorf("ValidatePDF(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestLibraryOpener_ReadsTextAndTables(t *testing.T) {
	lines := []pdftest.Line{{Page: 0, X: 72, Y: 720, Text: "Hello from page one"}}
	lines = append(lines, pdftest.Table(1, 700, 180, [][]string{
		{"Name", "Age"},
		{"Alice", "30"},
		{"Bob", "25"},
	})...)
	path := pdftest.Write(t, t.TempDir(), "sample.pdf", 2, lines)

	doc, err := LibraryOpener{}.Open(path, "")
	require.NoError(t, err)
	defer doc.Close()

	require.Equal(t, 2, doc.NumPages())

	first, err := doc.Page(0)
	require.NoError(t, err)
	text, err := first.Text()
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")

	second, err := doc.Page(1)
	require.NoError(t, err)
	rows, err := second.Rows()
	require.NoError(t, err)
	tables := DetectTables(rows)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Name", "Age"}, tables[0][0])
	assert.Equal(t, []string{"Bob", "25"}, tables[0][2])

	_, err = doc.Page(2)
	assert.Error(t, err)
}

func TestLibraryOpener_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\nthis is not really a pdf"), 0o644))

	_, err := LibraryOpener{}.Open(path, "")
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = LibraryOpener{}.Open(filepath.Join(t.TempDir(), "missing.pdf"), "")
	assert.Error(t, err)
}
