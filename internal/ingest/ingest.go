// Package ingest turns an uploaded charges file into a types.Table, picking
// the parser from the file extension. Any failure here is an
// InputFormatError: the file could not be read as a table at all.
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/csvparser"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
	"github.com/ginjaninja78/charges-to-invoice/internal/xlsxparser"
)

// InputFormatError reports that the source could not be parsed.
type InputFormatError struct {
	Source string
	Err    error
}

func (e *InputFormatError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Source, e.Err)
}

func (e *InputFormatError) Unwrap() error { return e.Err }

// SupportedExtensions lists the extensions ReadTable understands.
var SupportedExtensions = []string{".csv", ".xlsx", ".xlsm", ".xls"}

// ReadFile opens path and calls ReadTable.
func ReadFile(path string, settings config.CSVSettings) (*types.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputFormatError{Source: path, Err: err}
	}
	defer f.Close()

	return ReadTable(filepath.Base(path), f, settings)
}

// ReadTable parses r according to the extension of name.
func ReadTable(name string, r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	var (
		table *types.Table
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		table, err = csvparser.Parse(r, name, settings)
	case ".xlsx", ".xlsm":
		table, err = xlsxparser.ParseXLSX(r, name, settings.HeaderRow)
	case ".xls":
		var data []byte
		data, err = io.ReadAll(r)
		if err == nil {
			table, err = xlsxparser.ParseXLS(bytes.NewReader(data), name, settings.HeaderRow)
		}
	default:
		err = fmt.Errorf("unsupported file type %q (expected one of %s)", ext, strings.Join(SupportedExtensions, ", "))
	}

	if err != nil {
		return nil, &InputFormatError{Source: name, Err: err}
	}
	return table, nil
}
