// Package pdftest writes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Line is one run of text placed at (X, Y) on a 0-based page.
type Line struct {
	Page int
	X, Y float64
	Text string
}

// Build returns a PDF with the given number of pages and lines, set in
// 10pt Helvetica.
func Build(pages int, lines []Line) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 pages, 3 font, then a page and content object per page.
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))

	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = "500"
	}
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>")

	for p := 0; p < pages; p++ {
		var content strings.Builder
		for _, l := range lines {
			if l.Page != p {
				continue
			}
			fmt.Fprintf(&content, "BT /F1 10 Tf %.0f %.0f Td (%s) Tj ET\n", l.X, l.Y, escape(l.Text))
		}
		stream := content.String()
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*p))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Write builds a PDF into dir and returns its path.
func Write(tb testing.TB, dir, name string, pages int, lines []Line) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages, lines), 0o644); err != nil {
		tb.Fatalf("write pdf: %v", err)
	}
	return path
}

// Table lays out rows of cells starting at (72, top), one row every 14pt
// and one column every colWidth points.
func Table(page int, top, colWidth float64, rows [][]string) []Line {
	var lines []Line
	for r, row := range rows {
		for c, text := range row {
			if text == "" {
				continue
			}
			lines = append(lines, Line{Page: page, X: 72 + float64(c)*colWidth, Y: top - float64(r)*14, Text: text})
		}
	}
	return lines
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
