package converter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

func sampleTables() []*Table {
	return []*Table{
		{Columns: []string{"Name", "Age"}, Rows: [][]string{{"Alice", "30"}, {"Bob", "25"}}},
		{Columns: []string{"Item"}, Rows: [][]string{{"Coffee"}}},
	}
}

func TestWriteXLSX_SheetPerTableAndText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	texts := []models.PageText{{Page: 2, Text: "hello"}}
	require.NoError(t, WriteXLSX(path, sampleTables(), texts, false))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Table_1", "Table_2", TextSheet}, f.GetSheetList())

	rows, err := f.GetRows("Table_1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Alice", "30"}, {"Bob", "25"}}, rows)

	rows, err = f.GetRows(TextSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Page", "Text"}, {"2", "hello"}}, rows)
}

func TestWriteXLSX_MergedAndTextOnly(t *testing.T) {
	dir := t.TempDir()

	merged := filepath.Join(dir, "merged.xlsx")
	require.NoError(t, WriteXLSX(merged, sampleTables()[:1], nil, true))
	f, err := excelize.OpenFile(merged)
	require.NoError(t, err)
	assert.Equal(t, []string{MergedSheet}, f.GetSheetList())
	f.Close()

	textOnly := filepath.Join(dir, "text.xlsx")
	require.NoError(t, WriteXLSX(textOnly, nil, []models.PageText{{Page: 1, Text: "x"}}, false))
	f, err = excelize.OpenFile(textOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{TextSheet}, f.GetSheetList())
	f.Close()
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		tables []*Table
		texts  []models.PageText
		want   [][]string
	}{
		{
			name:   "first table only",
			tables: sampleTables(),
			texts:  []models.PageText{{Page: 1, Text: "ignored"}},
			want:   [][]string{{"Name", "Age"}, {"Alice", "30"}, {"Bob", "25"}},
		},
		{
			name:  "text when there are no tables",
			texts: []models.PageText{{Page: 1, Text: "line one, with comma"}, {Page: 3, Text: "multi\nline"}},
			want:  [][]string{{"Page", "Text"}, {"1", "line one, with comma"}, {"3", "multi\nline"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".csv")
			require.NoError(t, WriteCSV(path, tt.tables, tt.texts))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			got, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", maxCellChars+10)
	assert.Equal(t, maxCellChars, len([]rune(clip(long))))
	assert.Equal(t, "short", clip("short"))
}
