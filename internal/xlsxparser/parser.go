// =============================================================================
// Charges to Invoice - Spreadsheet Parser
// =============================================================================
//
// This module reads the charges report when it is exported as a workbook
// instead of CSV. Only the first sheet is read.
//
//   .xlsx / .xlsm : excelize
//   .xls          : extrame/xls (BIFF8 workbooks from older report servers)
//
// Cell values are read raw (no number formatting), so amounts arrive as
// plain decimals and dates as Excel serial numbers. The validator turns
// both into typed values.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/charges-to-invoice/internal/csvparser"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

// ParseXLSX reads the first sheet of an XLSX workbook.
//
// PARAMETERS:
//   - r:         Workbook content.
//   - name:      The source name recorded on the table.
//   - headerRow: 1-based header row.
//
// RETURNS:
//   - The parsed table.
//   - An error if the workbook cannot be opened or has no sheets.
func ParseXLSX(r io.Reader, name string, headerRow int) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %q: %w", sheetName, err)
	}

	return csvparser.TableFromRecords(rows, name, headerRow)
}

// ParseXLS reads the first sheet of a legacy BIFF (.xls) workbook.
// The BIFF reader panics on some malformed files; that is reported as an
// error like any other unreadable workbook.
func ParseXLS(r io.ReadSeeker, name string, headerRow int) (table *types.Table, err error) {
	defer func() {
		if p := recover(); p != nil {
			table = nil
			err = fmt.Errorf("failed to read xls workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls workbook: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}

	return csvparser.TableFromRecords(rows, name, headerRow)
}
