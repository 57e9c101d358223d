package importer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseFile_CSV(t *testing.T) {
	csv := "Kingdom_Number, KvK_Number ,Opponent_Kingdom\n172,5,189\n189,5,172\n"

	table, err := ParseFile("history.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []string{"kingdom_number", "kvk_number", "opponent_kingdom"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "172", table.cell(table.Rows[0], "kingdom_number"))
	assert.Equal(t, "189", table.cell(table.Rows[0], "opponent_kingdom"))
}

func TestParseFile_SemicolonDelimiter(t *testing.T) {
	csv := "kingdom_number;kvk_number;opponent_kingdom\n172;5;189\n"

	table, err := ParseFile("history.csv", strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "5", table.cell(table.Rows[0], "kvk_number"))
}

func TestParseFile_SkipsBlankRows(t *testing.T) {
	csv := "kingdom_number,kvk_number\n172,5\n,\n\n189,5\n"

	table, err := ParseFile("history.csv", strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "189", table.cell(table.Rows[1], "kingdom_number"))
}

func TestParseFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Kingdom_Number", "KvK_Number"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{172, 5}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ParseFile("history.xlsx", &buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"kingdom_number", "kvk_number"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "172", table.cell(table.Rows[0], "kingdom_number"))
}

func TestParseFile_Empty(t *testing.T) {
	_, err := ParseFile("history.csv", strings.NewReader(""))
	require.Error(t, err)
}

func TestCell_ShortRow(t *testing.T) {
	table := &Table{Header: []string{"a", "b", "c"}}
	row := []string{"1", "2"}

	assert.Equal(t, "2", table.cell(row, "b"))
	assert.Equal(t, "", table.cell(row, "c"))
	assert.Equal(t, "", table.cell(row, "missing"))
}
