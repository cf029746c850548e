package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
)

func defaultSettings() config.CSVSettings {
	return config.CSVSettings{Delimiter: ",", HeaderRow: 1}
}

func TestParseBuildsRowMaps(t *testing.T) {
	input := "\ufeffClient,Billing Ref,Charge Amount\n" +
		"HE01, DOC1 ,100.00\n" +
		",,\n" +
		"HE01,DOC2\n"

	table, err := Parse(strings.NewReader(input), "charges.csv", defaultSettings())
	require.NoError(t, err)

	assert.Equal(t, []string{"Client", "Billing Ref", "Charge Amount"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "DOC1", table.Rows[0]["Billing Ref"])
	assert.Equal(t, "100.00", table.Rows[0]["Charge Amount"])
	assert.Equal(t, "", table.Rows[1]["Charge Amount"])
	assert.Equal(t, "charges.csv", table.SourceName)
}

func TestParseHonoursHeaderRowAndDelimiter(t *testing.T) {
	input := "Charges report;generated today\n" +
		"Client;Rate\n" +
		"HE01;12.5\n"

	table, err := Parse(strings.NewReader(input), "x.csv", config.CSVSettings{Delimiter: "semicolon", HeaderRow: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"Client", "Rate"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "12.5", table.Rows[0]["Rate"])
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "empty.csv", defaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParseHeaderRowBeyondFile(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b\n"), "short.csv", config.CSVSettings{HeaderRow: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header_row")
}

func TestCleanHeaders(t *testing.T) {
	got := cleanHeaders([]string{" Client ", "", "Rate", "Rate"})
	assert.Equal(t, []string{"Client", "Column_2", "Rate", "Rate_2"}, got)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charges.csv")
	require.NoError(t, os.WriteFile(path, []byte("Client\tRate\nHE01\t3\n"), 0o644))

	table, err := ParseFile(path, config.CSVSettings{Delimiter: "tab", HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, "charges.csv", table.SourceName)
	assert.Equal(t, "3", table.Rows[0]["Rate"])
}
