// =============================================================================
// Charges to Invoice - CSV Parser Module
// =============================================================================
//
// This module parses CSV exports of the charges report into a types.Table.
// It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - A header row that is not the first line (report titles above it)
//   - Ragged rows (short rows are padded with "")
//   - A UTF-8 byte order mark written by spreadsheet exports
//
// Values are only trimmed here. Type coercion belongs to the validator.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

const utf8BOM = "\ufeff"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile opens filePath and parses it with Parse.
func ParseFile(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file, filepath.Base(filePath), settings)
}

// Parse reads CSV data and returns the parsed table.
//
// PARAMETERS:
//   - r:        The CSV content.
//   - name:     The source name recorded on the table.
//   - settings: Delimiter and header row.
//
// RETURNS:
//   - The parsed table. Rows that are entirely blank are skipped.
//   - An error if the content is not readable as CSV or has no header row.
func Parse(r io.Reader, name string, settings config.CSVSettings) (*types.Table, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return TableFromRecords(allRows, name, settings.HeaderRow)
}

// TableFromRecords turns raw records into a table. headerRow is 1-based;
// values below 1 mean the first record. The spreadsheet parsers share this
// so every input format produces identical tables.
func TableFromRecords(records [][]string, name string, headerRow int) (*types.Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	headerIndex := headerRow - 1
	if headerIndex < 0 {
		headerIndex = 0
	}
	if headerIndex >= len(records) {
		return nil, fmt.Errorf("file has %d rows but header_row is %d", len(records), headerRow)
	}

	headers := cleanHeaders(records[headerIndex])

	return &types.Table{
		Headers:    headers,
		Rows:       extractDataRows(records[headerIndex+1:], headers),
		SourceName: name,
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Report exports are not strict about column counts or quoting.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header values and names empty headers by position.
// Duplicate headers get a numeric suffix so no column is silently lost when
// rows are turned into maps.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		header = strings.TrimSpace(header)

		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		if n := seen[header]; n > 0 {
			seen[header] = n + 1
			header = fmt.Sprintf("%s_%d", header, n+1)
		} else {
			seen[header] = 1
		}

		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows converts the rows below the header into maps.
func extractDataRows(rows [][]string, headers []string) []map[string]string {
	dataRows := make([]map[string]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}

		dataRows = append(dataRows, rowMap)
	}

	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
