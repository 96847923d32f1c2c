package converter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildTable(t *testing.T) {
	tests := []struct {
		name    string
		raw     [][]string
		headers bool
		want    *Table
	}{
		{
			name:    "first row becomes header",
			raw:     [][]string{{"Name", "Age"}, {"Alice", "30"}},
			headers: true,
			want:    &Table{Columns: []string{"Name", "Age"}, Rows: [][]string{{"Alice", "30"}}},
		},
		{
			name:    "single row keeps positional names",
			raw:     [][]string{{"Alice", "30"}},
			headers: true,
			want:    &Table{Columns: []string{"0", "1"}, Rows: [][]string{{"Alice", "30"}}},
		},
		{
			name:    "headers disabled",
			raw:     [][]string{{"Name", "Age"}, {"Alice", "30"}},
			headers: false,
			want:    &Table{Columns: []string{"0", "1"}, Rows: [][]string{{"Name", "Age"}, {"Alice", "30"}}},
		},
		{
			name:    "ragged rows padded and blank or duplicate headers named",
			raw:     [][]string{{"Qty", "", "Qty"}, {"1"}},
			headers: true,
			want:    &Table{Columns: []string{"Qty", "Column_2", "Qty_2"}, Rows: [][]string{{"1", "", ""}}},
		},
		{
			name:    "duplicate suffix skips an existing header",
			raw:     [][]string{{"A", "A_2", "A"}, {"1", "2", "3"}},
			headers: true,
			want:    &Table{Columns: []string{"A", "A_2", "A_3"}, Rows: [][]string{{"1", "2", "3"}}},
		},
		{
			name:    "later explicit header keeps its name",
			raw:     [][]string{{"A", "A", "A_2"}, {"1", "2", "3"}},
			headers: true,
			want:    &Table{Columns: []string{"A", "A_3", "A_2"}, Rows: [][]string{{"1", "2", "3"}}},
		},
		{
			name:    "blank header clashing with a named one",
			raw:     [][]string{{"Column_2", ""}, {"1", "2"}},
			headers: true,
			want:    &Table{Columns: []string{"Column_2", "Column_2_2"}, Rows: [][]string{{"1", "2"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTable(tt.raw, tt.headers)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildTable() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tbl := &Table{
		Columns: []string{"A", "Empty", "C"},
		Rows: [][]string{
			{" x ", "", "1"},
			{"", "  ", ""},
			{"y", "", " 2"},
		},
	}
	tbl.Clean()

	want := &Table{
		Columns: []string{"A", "C"},
		Rows:    [][]string{{"x", "1"}, {"y", "2"}},
	}
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("Clean() mismatch (-want +got):\n%s", diff)
	}

	blank := &Table{Columns: []string{"A"}, Rows: [][]string{{" "}}}
	blank.Clean()
	if !blank.Empty() {
		t.Errorf("all-blank table should be empty after Clean, got %+v", blank)
	}
}

func TestMergeTables(t *testing.T) {
	a := &Table{Columns: []string{"Name", "Age"}, Rows: [][]string{{"Alice", "30"}}}
	b := &Table{Columns: []string{"Age", "City"}, Rows: [][]string{{"25", "Paris"}, {"40", "Rome"}}}

	got := MergeTables([]*Table{a, b})
	want := &Table{
		Columns: []string{"Name", "Age", "City"},
		Rows: [][]string{
			{"Alice", "30", ""},
			{"", "25", "Paris"},
			{"", "40", "Rome"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeTables() mismatch (-want +got):\n%s", diff)
	}
}
