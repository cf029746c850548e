// =============================================================================
// Charges to Invoice - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser / xlsxparser (Table)
//   - validation (ChargeRow)
//   - aggregate and layout (LineItem)
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW TABLE
// =============================================================================

// Table is a parsed tabular export before any validation.
// Every parser (CSV, XLSX, XLS) produces one of these.
type Table struct {
	// Headers contains the column headers in file order.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	// Values are trimmed; cells missing from short rows are "".
	Rows []map[string]string

	// SourceName is the file name the table was read from (for logs only).
	SourceName string
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// =============================================================================
// CHARGE TYPES
// =============================================================================

// ChargeRow is one billable charge line that passed validation.
//
// Amount is the authoritative billed value. It is never cross-checked
// against Quantity * Rate.
type ChargeRow struct {
	ClientID string

	// OuterKey and InnerKey are the raw grouping values. Blank values are
	// kept as "" here and mapped to the UNSPECIFIED sentinel by the aggregator.
	OuterKey string
	InnerKey string

	ServiceCode string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	Rate        decimal.Decimal
	Amount      decimal.Decimal

	// ActivityDate is nil when the cell was empty or unparseable.
	ActivityDate *time.Time

	InvoiceNumber string

	// SourceRow is the 1-based data row number in the input table.
	SourceRow int
}

// LineItem is the projection of a ChargeRow that is printed inside a
// document table.
type LineItem struct {
	ServiceCode string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	Rate        decimal.Decimal
	Amount      decimal.Decimal

	// Date is already formatted for display ("01/02/2006" or "N/A").
	Date string
}
