package pdf

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Layout thresholds, in multiples of the font size.
const (
	wordGapEm   = 0.15 // wider than this inserts a space
	cellGapEm   = 1.0  // wider than this starts a new cell
	rowBreakEm  = 3.0  // a vertical gap this tall ends a table
	defaultSize = 10.0
	avgGlyphEm  = 0.5 // width estimate when the library reports none
)

type cell struct {
	x0, x1 float64
	text   string
}

// DetectTables groups text rows into tables. Each row is split into cells
// wherever the horizontal gap between glyphs exceeds cellGapEm. A run of
// two or more consecutive rows with at least two cells forms a table, and
// its cells are aligned on column anchors shared by the whole run.
func DetectTables(rows []TextRow) [][][]string {
	var (
		tables [][][]string
		run    [][]cell
		lastY  float64
		size   float64
	)

	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, alignRun(run))
		}
		run = nil
	}

	for _, row := range rows {
		cells, fs := splitCells(row.Glyphs)
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && math.Abs(lastY-row.Y) > rowBreakEm*math.Max(size, fs) {
			flush()
		}
		run = append(run, cells)
		lastY, size = row.Y, fs
	}
	flush()
	return tables
}

// splitCells merges glyphs into words and words into cells. It also
// returns the row's largest font size.
func splitCells(glyphs []Glyph) ([]cell, float64) {
	var (
		cells []cell
		cur   *cell
		sb    strings.Builder
		size  float64
	)

	for _, g := range glyphs {
		if g.FontSize > size {
			size = g.FontSize
		}
	}
	if size == 0 {
		size = defaultSize
	}

	closeCell := func() {
		if cur != nil {
			cur.text = strings.TrimSpace(sb.String())
			if cur.text != "" {
				cells = append(cells, *cur)
			}
		}
		cur = nil
		sb.Reset()
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		w := g.W
		if w <= 0 {
			w = float64(utf8.RuneCountInString(g.S)) * avgGlyphEm * size
		}
		end := g.X + w
		if cur == nil {
			cur = &cell{x0: g.X, x1: end}
			sb.WriteString(g.S)
			continue
		}
		gap := g.X - cur.x1
		switch {
		case gap > cellGapEm*size:
			closeCell()
			cur = &cell{x0: g.X, x1: end}
		case gap > wordGapEm*size:
			sb.WriteByte(' ')
		}
		sb.WriteString(g.S)
		if end > cur.x1 {
			cur.x1 = end
		}
	}
	closeCell()
	return cells, size
}

type span struct{ x0, x1 float64 }

func (s span) overlaps(c cell) bool {
	return c.x0 <= s.x1 && c.x1 >= s.x0
}

// alignRun places each row's cells on the run's column anchors. Cells
// that land in the same column are joined with a space; missing cells
// are empty strings.
func alignRun(run [][]cell) [][]string {
	var all []cell
	for _, row := range run {
		all = append(all, row...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].x0 < all[j].x0 })

	var cols []span
	for _, c := range all {
		if n := len(cols); n > 0 && cols[n-1].overlaps(c) {
			if c.x1 > cols[n-1].x1 {
				cols[n-1].x1 = c.x1
			}
			continue
		}
		cols = append(cols, span{x0: c.x0, x1: c.x1})
	}

	table := make([][]string, 0, len(run))
	for _, row := range run {
		out := make([]string, len(cols))
		for _, c := range row {
			i := columnOf(cols, c)
			if out[i] != "" {
				out[i] += " "
			}
			out[i] += c.text
		}
		table = append(table, out)
	}
	return table
}

func columnOf(cols []span, c cell) int {
	for i, col := range cols {
		if col.overlaps(c) {
			return i
		}
	}
	return len(cols) - 1
}
