package export

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/tenkview/internal/finance"
)

func num(v float64) *float64 { return &v }

func sampleTables() []finance.Table {
	periods := []string{"2023", "2022"}
	return []finance.Table{
		{
			Statement: "Consolidated Balance Sheets",
			Unit:      "in millions",
			Periods:   periods,
			Rows: []finance.Row{
				{Category: "Cash", Cells: []finance.Cell{{Period: "2023", Value: num(1234)}, {Period: "2022", Value: num(1100)}}},
				{Category: "Receivables", Cells: []finance.Cell{{Period: "2023", Value: num(-56)}, {Period: "2022", Value: nil}}},
			},
		},
		{
			Statement: "Consolidated Statements of Operations: Segment/Geographic [Unaudited]",
			Unit:      finance.DefaultUnit,
			Periods:   periods,
			Rows: []finance.Row{
				{Category: "Revenue", Cells: []finance.Cell{{Period: "2023", Value: num(9.5)}, {Period: "2022", Value: num(8)}}},
			},
		},
	}
}

func TestWriteXLSX_OneSheetPerTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleTables()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 2)
	assert.Equal(t, "Consolidated Balance Sheets", sheets[0])

	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Consolidated Balance Sheets"}, rows[0])
	assert.Equal(t, []string{"Unit: in millions"}, rows[1])
	assert.Equal(t, []string{"Category", "2023", "2022"}, rows[2])
	assert.Equal(t, []string{"Cash", "1234", "1100"}, rows[3])
	// Null cells stay blank rather than zero.
	assert.Equal(t, []string{"Receivables", "-56"}, rows[4])
}

func TestWriteXLSX_NoTables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{emptySheet}, f.GetSheetList())
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}

	name := SheetName("Statements of Cash Flows: Parent/Subsidiary [Note 3]", used)
	assert.LessOrEqual(t, utf8.RuneCountInString(name), maxSheetName)
	assert.False(t, strings.ContainsAny(name, `:\/?*[]`), name)

	assert.Equal(t, "Balance", SheetName("Balance", used))
	assert.Equal(t, "balance (2)", SheetName("balance", used))
	assert.Equal(t, "Table", SheetName("  ", used))

	long := strings.Repeat("x", 40)
	first := SheetName(long, used)
	second := SheetName(long, used)
	assert.Len(t, first, maxSheetName)
	assert.Len(t, second, maxSheetName)
	assert.True(t, strings.HasSuffix(second, " (2)"))
}
