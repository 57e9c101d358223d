package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseFile reads a delimited text or XLSX file into a Table. The first line
// is the header; column names are trimmed and lowercased. CSV delimiters
// `,` and `;` are auto-detected from the header line.
func ParseFile(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		// excelize needs a ReaderAt; small operator uploads fit in memory.
		b, err := io.ReadAll(io.LimitReader(r, 10<<20))
		if err != nil {
			return nil, err
		}
		return parseXLSX(b)
	default:
		return parseCSV(r)
	}
}

func parseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	// Peek the header line to guess the delimiter, then put it back.
	line, _ := br.ReadString('\n')
	rest := io.MultiReader(strings.NewReader(line), br)

	reader := csv.NewReader(rest)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if strings.Count(line, ";") > strings.Count(line, ",") {
		reader.Comma = ';'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	return tableFromRows(rows)
}

func parseXLSX(b []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(name))
	}

	table := &Table{Header: header}
	for _, row := range rows[1:] {
		// Skip fully blank lines; spreadsheets export them freely.
		if len(strings.TrimSpace(strings.Join(row, ""))) == 0 {
			continue
		}
		trimmed := make([]string, len(row))
		for i, cell := range row {
			trimmed[i] = strings.TrimSpace(cell)
		}
		table.Rows = append(table.Rows, trimmed)
	}
	return table, nil
}

// cell returns the named column's value for a row, or "" when the column is
// absent or the row is short.
func (t *Table) cell(row []string, column string) string {
	for i, name := range t.Header {
		if name == column && i < len(row) {
			return row[i]
		}
	}
	return ""
}

// hasColumn reports whether the header names the column.
func (t *Table) hasColumn(column string) bool {
	for _, name := range t.Header {
		if name == column {
			return true
		}
	}
	return false
}
