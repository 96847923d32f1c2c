package converter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// Sheet names used in xlsx output.
const (
	MergedSheet = "Merged_Data"
	TextSheet   = "Extracted_Text"
)

// maxCellChars is Excel's limit on characters in one cell.
const maxCellChars = 32767

// WriteXLSX writes one sheet per table (or a single Merged_Data sheet when
// merged) plus an Extracted_Text sheet when there is text.
func WriteXLSX(path string, tables []*Table, texts []models.PageText, merged bool) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	addSheet := func(name string) error {
		if first {
			first = false
			return f.SetSheetName(f.GetSheetName(0), name)
		}
		_, err := f.NewSheet(name)
		return err
	}

	for i, t := range tables {
		name := "Table_" + strconv.Itoa(i+1)
		if merged {
			name = MergedSheet
		}
		if err := addSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, t.Columns, t.Rows); err != nil {
			return err
		}
	}

	if len(texts) > 0 {
		if err := addSheet(TextSheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", TextSheet, err)
		}
		if err := writeSheet(f, TextSheet, []string{"Page", "Text"}, textRows(texts)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", sheet, err)
	}

	write := func(rowNum int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = clip(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, values)
	}

	if err := write(1, header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	for i, r := range rows {
		if err := write(i+2, r); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return sw.Flush()
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxCellChars {
		return s
	}
	return string([]rune(s)[:maxCellChars])
}

// WriteCSV writes the first table, or the text pages when there are no tables.
func WriteCSV(path string, tables []*Table, texts []models.PageText) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(tables) > 0 {
		err = writeCSVRows(w, tables[0].Columns, tables[0].Rows)
	} else {
		err = writeCSVRows(w, []string{"Page", "Text"}, textRows(texts))
	}
	if err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func writeCSVRows(w *csv.Writer, header []string, rows [][]string) error {
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func textRows(texts []models.PageText) [][]string {
	rows := make([][]string, len(texts))
	for i, t := range texts {
		rows[i] = []string{strconv.Itoa(t.Page), t.Text}
	}
	return rows
}
