package xlsxparser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseXLSXReadsRawValues(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"Client", "Billing Ref", "Charge Amount", "Charge Qty"},
		[]interface{}{"HE01", "DOC1", 1250.5, 3},
		[]interface{}{nil, nil, nil, nil},
		[]interface{}{"HE01", "DOC2", 50, 1},
	)

	table, err := ParseXLSX(buf, "charges.xlsx", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"Client", "Billing Ref", "Charge Amount", "Charge Qty"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1250.5", table.Rows[0]["Charge Amount"])
	assert.Equal(t, "3", table.Rows[0]["Charge Qty"])
	assert.Equal(t, "DOC2", table.Rows[1]["Billing Ref"])
	assert.Equal(t, "charges.xlsx", table.SourceName)
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("not a zip archive"), "bad.xlsx", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open workbook")
}

func TestParseXLSRejectsGarbage(t *testing.T) {
	_, err := ParseXLS(strings.NewReader("definitely not BIFF"), "bad.xls", 1)
	require.Error(t, err)
}
