package pdf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type w struct {
	x float64
	s string
}

// row lays words out one glyph per rune, 5pt wide, at 10pt.
func row(y float64, words ...w) TextRow {
	r := TextRow{Y: y}
	for _, word := range words {
		for i, ch := range word.s {
			r.Glyphs = append(r.Glyphs, Glyph{X: word.x + float64(i)*5, Y: y, W: 5, FontSize: 10, S: string(ch)})
		}
	}
	return r
}

func TestDetectTables(t *testing.T) {
	tests := []struct {
		name string
		rows []TextRow
		want [][][]string
	}{
		{
			name: "simple table with multi-word cell",
			rows: []TextRow{
				row(700, w{0, "Name"}, w{100, "Age"}, w{200, "City"}),
				row(688, w{0, "Alice"}, w{100, "30"}, w{200, "New York"}),
				row(676, w{0, "Bob"}, w{100, "25"}, w{200, "Paris"}),
			},
			want: [][][]string{{
				{"Name", "Age", "City"},
				{"Alice", "30", "New York"},
				{"Bob", "25", "Paris"},
			}},
		},
		{
			name: "missing cell stays empty",
			rows: []TextRow{
				row(700, w{0, "Name"}, w{100, "Age"}, w{200, "City"}),
				row(688, w{0, "Carol"}, w{200, "Rome"}),
			},
			want: [][][]string{{
				{"Name", "Age", "City"},
				{"Carol", "", "Rome"},
			}},
		},
		{
			name: "paragraphs split tables",
			rows: []TextRow{
				row(760, w{0, "Quarterly report"}),
				row(748, w{0, "A"}, w{100, "1"}),
				row(736, w{0, "B"}, w{100, "2"}),
				row(724, w{0, "Totals follow below"}),
				row(712, w{0, "X"}, w{100, "9"}),
				row(700, w{0, "Y"}, w{100, "8"}),
			},
			want: [][][]string{
				{{"A", "1"}, {"B", "2"}},
				{{"X", "9"}, {"Y", "8"}},
			},
		},
		{
			name: "single multi-cell row is not a table",
			rows: []TextRow{
				row(700, w{0, "Left"}, w{300, "Right"}),
				row(688, w{0, "Just a sentence here"}),
			},
			want: nil,
		},
		{
			name: "large vertical gap ends a table",
			rows: []TextRow{
				row(700, w{0, "A"}, w{100, "1"}),
				row(688, w{0, "B"}, w{100, "2"}),
				row(400, w{0, "C"}, w{100, "3"}),
				row(388, w{0, "D"}, w{100, "4"}),
			},
			want: [][][]string{
				{{"A", "1"}, {"B", "2"}},
				{{"C", "3"}, {"D", "4"}},
			},
		},
		{
			name: "whole-string glyphs without widths",
			rows: []TextRow{
				{Y: 700, Glyphs: []Glyph{{X: 72, S: "Item"}, {X: 250, S: "Price"}}},
				{Y: 686, Glyphs: []Glyph{{X: 72, S: "Coffee beans"}, {X: 250, S: "12.50"}}},
			},
			want: [][][]string{{
				{"Item", "Price"},
				{"Coffee beans", "12.50"},
			}},
		},
		{
			name: "no rows",
			rows: nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTables(tt.rows)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DetectTables() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
