package converter

import (
	"strconv"
	"strings"
)

// Table is a rectangular grid with named columns.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	return len(t.Columns) == 0 || len(t.Rows) == 0
}

// BuildTable turns a raw grid into a Table. With includeHeaders and more
// than one row, the first row names the columns; otherwise columns are
// named by their position, starting at 0.
func BuildTable(raw [][]string, includeHeaders bool) *Table {
	width := 0
	for _, r := range raw {
		width = max(width, len(r))
	}

	rows := make([][]string, len(raw))
	for i, r := range raw {
		rows[i] = make([]string, width)
		copy(rows[i], r)
	}

	t := &Table{}
	if includeHeaders && len(rows) > 1 {
		t.Columns = headerNames(rows[0])
		t.Rows = rows[1:]
	} else {
		t.Columns = make([]string, width)
		for i := range t.Columns {
			t.Columns[i] = strconv.Itoa(i)
		}
		t.Rows = rows
	}
	return t
}

// headerNames fills blank header cells and makes names unique, so that
// merging by name never folds two columns of one table together. A repeat
// gets the first free "_N" suffix that no other header already spells.
func headerNames(row []string) []string {
	names := make([]string, len(row))
	taken := make(map[string]bool, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column_" + strconv.Itoa(i+1)
		}
		names[i] = h
		taken[h] = true
	}

	used := make(map[string]bool, len(row))
	for i, h := range names {
		if used[h] {
			for n := 2; ; n++ {
				candidate := h + "_" + strconv.Itoa(n)
				if !taken[candidate] && !used[candidate] {
					h = candidate
					break
				}
			}
			names[i] = h
		}
		used[h] = true
	}
	return names
}

// Clean trims every cell and drops rows and columns whose cells are all
// empty. Headers do not count when deciding whether a column is empty.
func (t *Table) Clean() {
	for _, r := range t.Rows {
		for j := range r {
			r[j] = strings.TrimSpace(r[j])
		}
	}

	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if !allEmpty(r) {
			kept = append(kept, r)
		}
	}
	t.Rows = kept

	var keepCols []int
	for j := range t.Columns {
		for _, r := range t.Rows {
			if r[j] != "" {
				keepCols = append(keepCols, j)
				break
			}
		}
	}
	if len(keepCols) == len(t.Columns) {
		return
	}

	cols := make([]string, len(keepCols))
	for k, j := range keepCols {
		cols[k] = t.Columns[j]
	}
	for i, r := range t.Rows {
		nr := make([]string, len(keepCols))
		for k, j := range keepCols {
			nr[k] = r[j]
		}
		t.Rows[i] = nr
	}
	t.Columns = cols
}

func allEmpty(r []string) bool {
	for _, c := range r {
		if c != "" {
			return false
		}
	}
	return true
}

// MergeTables concatenates tables by column name. Columns appear in the
// order their names are first seen; a table lacking a column contributes
// empty cells to it.
func MergeTables(tables []*Table) *Table {
	merged := &Table{}
	index := map[string]int{}
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := index[c]; !ok {
				index[c] = len(merged.Columns)
				merged.Columns = append(merged.Columns, c)
			}
		}
	}

	for _, t := range tables {
		for _, r := range t.Rows {
			nr := make([]string, len(merged.Columns))
			for j, c := range t.Columns {
				nr[index[c]] = r[j]
			}
			merged.Rows = append(merged.Rows, nr)
		}
	}
	return merged
}
