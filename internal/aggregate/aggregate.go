// =============================================================================
// Charges to Invoice - Aggregator
// =============================================================================
//
// This module groups cleaned charge rows into the two-level invoice hierarchy
//
//   outer key (PO#) -> inner key (document / job) -> ordered line items
//
// and computes the rollups printed on the invoice:
//
//   - a global rollup per (service code, description, unit)
//   - the same rollup per outer group, derived from the finished hierarchy
//   - a total per document and per outer group
//   - the grand subtotal, tax and total due
//
// Both levels keep first-seen order. Sums use decimals at full precision in
// row order; rounding happens only when values are printed.
//
// =============================================================================

package aggregate

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/charges-to-invoice/internal/format"
	"github.com/ginjaninja78/charges-to-invoice/internal/ordered"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

// Unspecified replaces a blank outer or inner key.
const Unspecified = "UNSPECIFIED"

// =============================================================================
// ROLLUPS
// =============================================================================

// RollupKey identifies one service line in a rollup.
type RollupKey struct {
	ServiceCode string
	Description string
	Unit        string
}

// Rollup is the summed quantity and amount for one RollupKey.
type Rollup struct {
	Key      RollupKey
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}

// RollupMap is an insertion-ordered rollup table.
type RollupMap = ordered.Map[RollupKey, *Rollup]

func addToRollup(m *RollupMap, key RollupKey, qty, amount decimal.Decimal) {
	r := m.GetOrCreate(key, func() *Rollup {
		return &Rollup{Key: key, Quantity: decimal.Zero, Amount: decimal.Zero}
	})
	r.Quantity = r.Quantity.Add(qty)
	r.Amount = r.Amount.Add(amount)
}

// =============================================================================
// GROUPS
// =============================================================================

// DocumentGroup is the ordered list of line items of one document.
type DocumentGroup struct {
	Key   string
	Items []types.LineItem

	total decimal.Decimal
}

// Total is the sum of the item amounts.
func (d *DocumentGroup) Total() decimal.Decimal {
	return d.total
}

// FirstDate is the formatted date of the first line item.
func (d *DocumentGroup) FirstDate() string {
	if len(d.Items) == 0 {
		return format.MissingDate
	}
	return d.Items[0].Date
}

// OuterGroup holds the documents of one outer key.
type OuterGroup struct {
	Key       string
	Documents *ordered.Map[string, *DocumentGroup]
}

// Total is the sum of the document totals.
func (g *OuterGroup) Total() decimal.Decimal {
	total := decimal.Zero
	for _, doc := range g.Documents.Values() {
		total = total.Add(doc.Total())
	}
	return total
}

// ItemCount is the number of line items across all documents.
func (g *OuterGroup) ItemCount() int {
	n := 0
	for _, doc := range g.Documents.Values() {
		n += len(doc.Items)
	}
	return n
}

// ServiceRollup sums the group's line items per (service, description, unit)
// in first-seen order. It is derived from the documents on every call.
func (g *OuterGroup) ServiceRollup() *RollupMap {
	m := ordered.New[RollupKey, *Rollup]()
	for _, doc := range g.Documents.Values() {
		for _, item := range doc.Items {
			addToRollup(m, rollupKey(item.ServiceCode, item.Description, item.Unit), item.Quantity, item.Amount)
		}
	}
	return m
}

// =============================================================================
// INVOICE AGGREGATE
// =============================================================================

// InvoiceAggregate is everything the layout engine needs from the charges.
type InvoiceAggregate struct {
	Groups        *ordered.Map[string, *OuterGroup]
	ServiceRollup *RollupMap

	Subtotal decimal.Decimal
	TaxRate  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	InvoiceNumber string
	RowCount      int
}

// Options configures Aggregate.
type Options struct {
	InvoiceNumber string
	TaxRate       decimal.Decimal
}

// Aggregate builds the invoice hierarchy and rollups in a single pass over
// rows. Rows must already be validated.
func Aggregate(rows []types.ChargeRow, opts Options) *InvoiceAggregate {
	agg := &InvoiceAggregate{
		Groups:        ordered.New[string, *OuterGroup](),
		ServiceRollup: ordered.New[RollupKey, *Rollup](),
		Subtotal:      decimal.Zero,
		TaxRate:       opts.TaxRate,
		InvoiceNumber: opts.InvoiceNumber,
		RowCount:      len(rows),
	}

	for _, row := range rows {
		outerKey := NormalizeKey(row.OuterKey)
		innerKey := NormalizeKey(row.InnerKey)

		group := agg.Groups.GetOrCreate(outerKey, func() *OuterGroup {
			return &OuterGroup{Key: outerKey, Documents: ordered.New[string, *DocumentGroup]()}
		})
		doc := group.Documents.GetOrCreate(innerKey, func() *DocumentGroup {
			return &DocumentGroup{Key: innerKey, total: decimal.Zero}
		})

		doc.Items = append(doc.Items, lineItem(row))
		doc.total = doc.total.Add(row.Amount)

		addToRollup(agg.ServiceRollup, rollupKey(row.ServiceCode, row.Description, row.Unit), row.Quantity, row.Amount)
		agg.Subtotal = agg.Subtotal.Add(row.Amount)
	}

	agg.Tax = agg.Subtotal.Mul(agg.TaxRate)
	agg.Total = agg.Subtotal.Add(agg.Tax)

	return agg
}

// DocumentCount is the number of documents across all groups.
func (a *InvoiceAggregate) DocumentCount() int {
	n := 0
	for _, g := range a.Groups.Values() {
		n += g.Documents.Len()
	}
	return n
}

// NormalizeKey trims a grouping value and substitutes Unspecified for blanks.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}

func rollupKey(code, desc, unit string) RollupKey {
	return RollupKey{ServiceCode: code, Description: desc, Unit: unit}
}

func lineItem(row types.ChargeRow) types.LineItem {
	return types.LineItem{
		ServiceCode: row.ServiceCode,
		Description: row.Description,
		Quantity:    row.Quantity,
		Unit:        row.Unit,
		Rate:        row.Rate,
		Amount:      row.Amount,
		Date:        format.Date(row.ActivityDate),
	}
}
