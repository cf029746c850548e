// =============================================================================
// Charges to Invoice - Row Validator
// =============================================================================
//
// This module checks a parsed charges table and turns it into typed
// ChargeRows. The checks run in a fixed order and the first fatal one wins:
//
//   1. Tenant:    the Client column exists and the first row holds the tenant
//                 code this tool is allowed to bill.
//   2. Outer key: one of the outer-key aliases is present (matched ignoring
//                 case and whitespace). Otherwise the available columns are
//                 listed in the error.
//   3. Columns:   the document column and the other required columns exist.
//   4. Rows:      amount, quantity and rate are coerced to decimals. Rows that
//                 fail coercion or bill zero/negative amounts are dropped and
//                 counted, not reported as errors.
//   5. Empty:     at least one row must survive.
//
// The input table is never modified.
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// Rule identifies which check produced a ValidationError.
type Rule string

const (
	RuleTenant        Rule = "tenant"
	RuleMissingColumn Rule = "missing_column"
	RuleEmpty         Rule = "empty"
	RuleDateOrder     Rule = "date_order"
)

// ValidationError is a fatal problem with the uploaded charges. Nothing is
// rendered once one is returned.
type ValidationError struct {
	Rule Rule

	// Field is the column (or caller input) the error is about.
	Field string

	// Message is a human-readable error message.
	Message string

	// Available lists the columns found in the file when a required column
	// could not be resolved.
	Available []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Available) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (available columns: %s)", e.Message, strings.Join(e.Available, ", "))
}

// =============================================================================
// DROPPED ROW DIAGNOSTICS
// =============================================================================

// DropReason explains why a row was left out of the invoice.
type DropReason string

const (
	DropAmountNotNumeric   DropReason = "amount_not_numeric"
	DropAmountNotPositive  DropReason = "amount_not_positive"
	DropQuantityNotNumeric DropReason = "quantity_not_numeric"
	DropRateNotNumeric     DropReason = "rate_not_numeric"
)

// Description is a human-readable explanation of the reason.
func (r DropReason) Description() string {
	switch r {
	case DropAmountNotNumeric:
		return "amount is not a number"
	case DropAmountNotPositive:
		return "amount must be greater than zero"
	case DropQuantityNotNumeric:
		return "quantity is not a number"
	case DropRateNotNumeric:
		return "rate is not a number"
	default:
		return string(r)
	}
}

// DroppedRow records one filtered row.
type DroppedRow struct {
	// Row is the 1-based data row number.
	Row    int
	Reason DropReason
	Value  string
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result is the cleaned row set.
type Result struct {
	Rows []types.ChargeRow

	// InvoiceNumber comes from the first valid row, or the configured
	// placeholder.
	InvoiceNumber string

	// OuterColumn is the header that matched the outer-key aliases.
	OuterColumn string

	TotalRows   int
	DroppedRows []DroppedRow
}

// Dropped returns how many input rows were filtered out.
func (r *Result) Dropped() int {
	return len(r.DroppedRows)
}

// DroppedByReason counts dropped rows per reason.
func (r *Result) DroppedByReason() map[DropReason]int {
	counts := make(map[DropReason]int)
	for _, d := range r.DroppedRows {
		counts[d.Reason]++
	}
	return counts
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options configures a Validator.
type Options struct {
	TenantCode           string
	Columns              config.ColumnsConfig
	MissingInvoiceNumber string
}

// OptionsFromConfig builds Options from the application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TenantCode:           cfg.Tenant.Code,
		Columns:              cfg.Columns,
		MissingInvoiceNumber: cfg.Invoice.MissingInvoiceNumber,
	}
}

// Validator validates charges tables. It holds no per-run state and can be
// shared.
type Validator struct {
	opts Options
}

// NewValidator creates a Validator.
func NewValidator(opts Options) *Validator {
	if opts.MissingInvoiceNumber == "" {
		opts.MissingInvoiceNumber = "N/A"
	}
	return &Validator{opts: opts}
}

// columnSet holds the resolved header name for every column the validator
// reads. Optional columns may be "".
type columnSet struct {
	tenant       string
	outer        string
	document     string
	amount       string
	quantity     string
	unit         string
	service      string
	description  string
	rate         string
	activityDate string
	invoice      string
}

// Validate checks table and returns the cleaned rows.
//
// RETURNS:
//   - The cleaned result, with dropped-row diagnostics.
//   - A *ValidationError when a fatal rule fails.
func (v *Validator) Validate(table *types.Table) (*Result, error) {
	if table == nil {
		return nil, &ValidationError{Rule: RuleEmpty, Message: "no charges table supplied"}
	}

	cols, err := v.resolveColumns(table)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OuterColumn:   cols.outer,
		TotalRows:     len(table.Rows),
		InvoiceNumber: v.opts.MissingInvoiceNumber,
	}

	for i, raw := range table.Rows {
		rowNum := i + 1

		row, drop := v.convertRow(raw, cols, rowNum)
		if drop != nil {
			result.DroppedRows = append(result.DroppedRows, *drop)
			continue
		}

		if len(result.Rows) == 0 && row.InvoiceNumber != "" {
			result.InvoiceNumber = row.InvoiceNumber
		}
		result.Rows = append(result.Rows, row)
	}

	if len(result.Rows) == 0 {
		return nil, &ValidationError{
			Rule:    RuleEmpty,
			Field:   cols.amount,
			Message: fmt.Sprintf("no billable rows: all %d rows were dropped (non-numeric or non-positive %s)", len(table.Rows), cols.amount),
		}
	}

	return result, nil
}

// resolveColumns applies rules 1 to 3.
func (v *Validator) resolveColumns(table *types.Table) (columnSet, error) {
	c := v.opts.Columns
	var cols columnSet

	// Rule 1: tenant.
	tenant, ok := ResolveColumn(table.Headers, c.Tenant)
	if !ok {
		return cols, &ValidationError{
			Rule:      RuleTenant,
			Field:     c.Tenant,
			Message:   fmt.Sprintf("missing required column %q; only client %q may be invoiced", c.Tenant, v.opts.TenantCode),
			Available: table.Headers,
		}
	}
	if len(table.Rows) == 0 {
		return cols, &ValidationError{Rule: RuleEmpty, Message: "the file contains no data rows"}
	}
	if got := strings.TrimSpace(table.Rows[0][tenant]); got != v.opts.TenantCode {
		return cols, &ValidationError{
			Rule:    RuleTenant,
			Field:   tenant,
			Message: fmt.Sprintf("only %s = %q may be invoiced, file has %q", tenant, v.opts.TenantCode, got),
		}
	}
	cols.tenant = tenant

	// Rule 2: outer key by alias.
	for _, alias := range c.OuterAliases {
		if name, ok := ResolveColumn(table.Headers, alias); ok {
			cols.outer = name
			break
		}
	}
	if cols.outer == "" {
		return cols, &ValidationError{
			Rule:      RuleMissingColumn,
			Field:     c.OuterAliases[0],
			Message:   fmt.Sprintf("missing outer grouping column: expected one of %s", quoteAll(c.OuterAliases)),
			Available: table.Headers,
		}
	}

	// Rule 3: document column, then the rest of the required columns.
	required := []struct {
		want string
		dst  *string
	}{
		{c.Document, &cols.document},
		{c.Amount, &cols.amount},
		{c.Quantity, &cols.quantity},
		{c.Unit, &cols.unit},
		{c.ServiceCode, &cols.service},
		{c.Description, &cols.description},
		{c.Rate, &cols.rate},
	}
	for _, r := range required {
		name, ok := ResolveColumn(table.Headers, r.want)
		if !ok {
			return cols, &ValidationError{
				Rule:      RuleMissingColumn,
				Field:     r.want,
				Message:   fmt.Sprintf("missing required column %q", r.want),
				Available: table.Headers,
			}
		}
		*r.dst = name
	}

	cols.activityDate, _ = ResolveColumn(table.Headers, c.ActivityDate)
	cols.invoice, _ = ResolveColumn(table.Headers, c.Invoice)

	return cols, nil
}

// convertRow applies rule 4 to one row.
func (v *Validator) convertRow(raw map[string]string, cols columnSet, rowNum int) (types.ChargeRow, *DroppedRow) {
	amountText := raw[cols.amount]
	amount, err := ParseDecimal(amountText)
	if err != nil || strings.TrimSpace(amountText) == "" {
		return types.ChargeRow{}, &DroppedRow{Row: rowNum, Reason: DropAmountNotNumeric, Value: amountText}
	}
	if !amount.IsPositive() {
		return types.ChargeRow{}, &DroppedRow{Row: rowNum, Reason: DropAmountNotPositive, Value: amountText}
	}

	quantity, err := ParseDecimal(raw[cols.quantity])
	if err != nil {
		return types.ChargeRow{}, &DroppedRow{Row: rowNum, Reason: DropQuantityNotNumeric, Value: raw[cols.quantity]}
	}

	rate, err := ParseDecimal(raw[cols.rate])
	if err != nil {
		return types.ChargeRow{}, &DroppedRow{Row: rowNum, Reason: DropRateNotNumeric, Value: raw[cols.rate]}
	}

	row := types.ChargeRow{
		ClientID:    strings.TrimSpace(raw[cols.tenant]),
		OuterKey:    raw[cols.outer],
		InnerKey:    raw[cols.document],
		ServiceCode: strings.TrimSpace(raw[cols.service]),
		Description: strings.TrimSpace(raw[cols.description]),
		Quantity:    quantity,
		Unit:        strings.TrimSpace(raw[cols.unit]),
		Rate:        rate,
		Amount:      amount,
		SourceRow:   rowNum,
	}
	if cols.activityDate != "" {
		row.ActivityDate = ParseDate(raw[cols.activityDate])
	}
	if cols.invoice != "" {
		row.InvoiceNumber = strings.TrimSpace(raw[cols.invoice])
	}
	return row, nil
}

// =============================================================================
// CALLER INPUT CHECKS
// =============================================================================

// ValidateDates rejects a due date that falls before the invoice date.
func ValidateDates(invoiceDate, dueDate time.Time) error {
	if dueDate.Before(truncateDay(invoiceDate)) {
		return &ValidationError{
			Rule:  RuleDateOrder,
			Field: "due_date",
			Message: fmt.Sprintf("due date %s is before invoice date %s",
				dueDate.Format("2006-01-02"), invoiceDate.Format("2006-01-02")),
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

// ResolveColumn finds want among headers. An exact match wins; otherwise
// names are compared lower-cased with all whitespace removed, so
// "Header ref", "header REF" and "HeaderRef" are the same column.
func ResolveColumn(headers []string, want string) (string, bool) {
	if want == "" {
		return "", false
	}
	for _, h := range headers {
		if h == want {
			return h, true
		}
	}
	key := NormalizeName(want)
	for _, h := range headers {
		if NormalizeName(h) == key {
			return h, true
		}
	}
	return "", false
}

// NormalizeName lower-cases s and drops every whitespace character.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

// =============================================================================
// VALUE COERCION
// =============================================================================

// ParseDecimal coerces a cell to a decimal. Blank cells are zero.
// Thousands separators are ignored.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

// dateLayouts are tried in order after the Excel serial check.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-06",
	"Jan 2, 2006",
}

// ParseDate parses an activity date. Workbook cells arrive as Excel serial
// numbers; CSV cells as text. Returns nil when nothing matches.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 || serial > 2958465 {
			return nil
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil
		}
		return &t
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// SortedReasons returns the reasons present in counts in a stable order,
// for printing.
func SortedReasons(counts map[DropReason]int) []DropReason {
	reasons := make([]DropReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}
