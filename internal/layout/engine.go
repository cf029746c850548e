// =============================================================================
// Charges to Invoice - Layout Engine
// =============================================================================
//
// The engine walks an InvoiceAggregate and writes, in order:
//
//   1. the page-one header (logo, letterhead, invoice block, bill-to,
//      warehouse and payment blocks)
//   2. the "Subtotals by Service" rollup
//   3. per outer group: its rollup, one boxed table per document and the
//      group total
//   4. the totals block
//
// and finally stamps a footer on every page. Every block asks Reserve for
// room first; Reserve either leaves the state alone or opens a new page with
// the running header.
//
// =============================================================================

package layout

import (
	"fmt"
	"math"
	"time"

	"github.com/ginjaninja78/charges-to-invoice/internal/aggregate"
	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/format"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

// Line heights in points.
const (
	rollupLineHeight = 16.0
	headingHeight    = 14.0
	docLabelHeight   = 21.0
	colHeaderHeight  = 12.0
	rowLineHeight    = 12.0
	docTrailerHeight = 45.0
	totalsHeight     = 69.0

	// runningHeaderHeight is how far writeRunningHeader moves the cursor.
	runningHeaderHeight = 70.0
)

// Column positions of the document table.
var (
	colCode   = LeftX
	colDesc   = 120.0
	colQty    = 250.0
	colUnit   = 300.0
	colRate   = 350.0
	colAmount = 420.0
)

// Overflow modes for document tables that do not fit on the current page.
const (
	OverflowContinue = config.OverflowContinue
	OverflowTruncate = config.OverflowTruncate
)

// Options holds the geometry knobs of the engine.
type Options struct {
	// DescriptionWidth is the wrap budget for descriptions, in characters.
	DescriptionWidth int

	// Page-break thresholds: a block is moved to a new page when it would
	// end below these y positions.
	SummaryMinY  float64
	DocumentMinY float64
	TotalsMinY   float64
	BottomMargin float64

	Overflow string

	// GeneratedAt is printed in the footer.
	GeneratedAt time.Time
}

// OptionsFromConfig maps the layout section of the configuration.
func OptionsFromConfig(cfg config.LayoutConfig, generatedAt time.Time) Options {
	return Options{
		DescriptionWidth: cfg.DescriptionWidth,
		SummaryMinY:      cfg.SummaryMinY,
		DocumentMinY:     cfg.DocumentMinY,
		TotalsMinY:       cfg.TotalsMinY,
		BottomMargin:     cfg.BottomMargin,
		Overflow:         cfg.Overflow,
		GeneratedAt:      generatedAt,
	}
}

// Boilerplate is the fixed text printed around the charges.
type Boilerplate struct {
	CompanyName string
	Phone       string
	Email       string
	TaxRegNo    string
	Terms       string
	RunningTag  string

	// LogoPath is drawn when non-empty. Callers clear it when the file is
	// missing.
	LogoPath string

	ClientID      string
	BillToName    string
	BillToAddress string

	WarehouseTitle string
	WarehouseLines []string
	PaymentLines   []string

	TaxLabel string

	InvoiceDate time.Time
	DueDate     time.Time
}

// BoilerplateFromConfig fills the boilerplate from the configuration and the
// invoice dates. The logo path is copied as is.
func BoilerplateFromConfig(cfg *config.Config, invoiceDate, dueDate time.Time) Boilerplate {
	return Boilerplate{
		CompanyName:    cfg.Company.Name,
		Phone:          cfg.Company.Phone,
		Email:          cfg.Company.Email,
		TaxRegNo:       cfg.Company.TaxRegNo,
		Terms:          cfg.Company.Terms,
		RunningTag:     cfg.Company.RunningTag,
		LogoPath:       cfg.Layout.LogoPath,
		ClientID:       cfg.Tenant.Code,
		BillToName:     cfg.Tenant.Name,
		BillToAddress:  cfg.Tenant.Address,
		WarehouseTitle: cfg.Warehouse.Title,
		WarehouseLines: cfg.Warehouse.Lines,
		PaymentLines:   cfg.Payment.Lines,
		TaxLabel:       cfg.Invoice.TaxLabel,
		InvoiceDate:    invoiceDate,
		DueDate:        dueDate,
	}
}

// Result is the laid out invoice.
type Result struct {
	Pages []Page

	// TruncatedItems is the number of line items omitted in truncate mode.
	TruncatedItems int

	// LowestY is the lowest cursor position reached while writing.
	LowestY float64
}

// Engine lays out one invoice at a time. Cursor and page bookkeeping live in
// the State threaded through the block writers. An Engine is not safe for
// concurrent use.
type Engine struct {
	opts Options
	bp   Boilerplate

	invoiceNumber string
}

// NewEngine creates an engine.
func NewEngine(opts Options, bp Boilerplate) *Engine {
	return &Engine{opts: opts, bp: bp}
}

// Layout places agg onto pages.
func (e *Engine) Layout(agg *aggregate.InvoiceAggregate) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(phaseError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()

	e.invoiceNumber = agg.InvoiceNumber

	st := NewState()
	st = e.writeHeader(st)
	st = e.writeSummary(st, agg.ServiceRollup)

	st = st.enter(PhaseGroups)
	for _, group := range agg.Groups.Values() {
		st = e.writeGroup(st, group)
	}

	st = e.writeTotals(st, agg)
	pages := e.stampFooters(st.Pages)

	return Result{Pages: pages, TruncatedItems: st.Truncated, LowestY: st.LowestY}, nil
}

// Reserve makes room for a block of height h that must end at or above minY.
// When the block fits, the state is returned unchanged. Otherwise a new page
// is opened, the running header is written on it, and broke is true.
func (e *Engine) Reserve(st State, h, minY float64) (next State, broke bool) {
	if st.Fits(h, minY) {
		return st, false
	}
	st = st.newPage()
	return e.writeRunningHeader(st), true
}

// =============================================================================
// HEADER
// =============================================================================

func (e *Engine) writeHeader(st State) State {
	bp := e.bp

	if bp.LogoPath != "" {
		st = st.emit(Command{Kind: KindImage, X: LeftX, Y: st.Y - 70, Width: 120, Height: 60, Path: bp.LogoPath})
		st = st.Down(80)
	} else {
		st = st.Down(20)
	}

	st = e.text(st, LeftX, bp.CompanyName, Regular(10))
	st = st.Down(14)
	st = e.text(st, LeftX, "Phone: "+bp.Phone, Regular(9))
	st = st.Down(13)
	st = e.text(st, LeftX, "Email: "+bp.Email, Regular(9))
	st = st.Down(13)
	st = st.Down(15)

	right := PageWidth - 150
	st = st.emit(textAt(right, st.Y+25, "INVOICE", Bold(12)))
	st = st.emit(textAt(right, st.Y+10, "Invoice No. "+e.invoiceNumber, Regular(10)))
	st = st.emit(textAt(right, st.Y-5, "Invoice Date: "+bp.InvoiceDate.Format(format.DateLayout), Regular(9)))
	st = st.emit(textAt(right, st.Y-20, "Due Date: "+bp.DueDate.Format(format.DateLayout), Regular(9)))
	st = st.Down(30)

	top := st.Y
	st = st.emit(textAt(350, top, "GST Reg No. "+bp.TaxRegNo, Regular(10)))
	st = st.emit(textAt(350, top-14, "Terms: "+bp.Terms, Regular(10)))

	st = e.text(st, LeftX, "Bill To:", Bold(10))
	st = st.Down(14)
	st = e.text(st, LeftX, bp.BillToName, Regular(10))
	st = st.Down(14)
	st = e.text(st, LeftX, bp.BillToAddress, Regular(9))
	st = st.Down(13)
	st = e.text(st, LeftX, "ID: "+bp.ClientID, Regular(10))
	st = st.Down(14)
	st = st.Down(20)

	if bp.WarehouseTitle != "" {
		st = e.text(st, LeftX, bp.WarehouseTitle, Bold(10))
		st = st.Down(14)
	}
	for _, line := range bp.WarehouseLines {
		st = e.text(st, LeftX, line, Regular(9))
		st = st.Down(13)
	}
	st = st.Down(10)

	for _, line := range bp.PaymentLines {
		st = e.text(st, LeftX, line, Regular(9))
		st = st.Down(13)
	}
	return st.Down(20)
}

// writeRunningHeader prints the short header used on every page after the
// first one.
func (e *Engine) writeRunningHeader(st State) State {
	right := PageWidth - 150
	st = st.emit(textAt(LeftX, st.Y, e.bp.CompanyName, Regular(10)))
	st = st.emit(textAt(right, st.Y, e.bp.RunningTag, Bold(12)))
	st = st.emit(textAt(right, st.Y-15, "Invoice No. "+e.invoiceNumber, Regular(10)))
	return st.Down(runningHeaderHeight)
}

// =============================================================================
// ROLLUPS
// =============================================================================

func (e *Engine) writeSummary(st State, rollup *aggregate.RollupMap) State {
	st = st.enter(PhaseSummary)

	st, _ = e.Reserve(st, headingHeight+10+rollupLineHeight, e.opts.SummaryMinY)
	st = e.text(st, LeftX, "Subtotals by Service", Bold(10))
	st = st.Down(headingHeight + 10)

	st = e.writeRollupLines(st, rollup)
	return st.Down(20)
}

func (e *Engine) writeRollupLines(st State, rollup *aggregate.RollupMap) State {
	for _, r := range rollup.Values() {
		st, _ = e.Reserve(st, rollupLineHeight, e.opts.SummaryMinY)
		st = e.text(st, LeftX, RollupLine(r), Regular(9))
		st = st.Down(rollupLineHeight)
	}
	return st
}

// RollupLine renders "{code} – {desc} – {qty} {unit} – ${amount}".
func RollupLine(r *aggregate.Rollup) string {
	return fmt.Sprintf("%s – %s – %s %s – %s",
		r.Key.ServiceCode, r.Key.Description, format.Quantity(r.Quantity), r.Key.Unit, format.Dollars(r.Amount))
}

// =============================================================================
// GROUPS AND DOCUMENTS
// =============================================================================

func (e *Engine) writeGroup(st State, group *aggregate.OuterGroup) State {
	st = st.enter(PhaseGroups)

	st, _ = e.Reserve(st, headingHeight+5+rollupLineHeight, e.opts.SummaryMinY)
	st = e.text(st, LeftX, fmt.Sprintf("PO# %s Summary", group.Key), Bold(10))
	st = st.Down(headingHeight + 5)

	st = e.writeRollupLines(st, group.ServiceRollup())
	st = st.Down(10)

	for _, doc := range group.Documents.Values() {
		st = e.writeDocument(st, group.Key, doc)
	}

	st, _ = e.Reserve(st, headingHeight, e.opts.SummaryMinY)
	st = st.emit(Command{
		Kind:  KindText,
		X:     RightX,
		Y:     st.Y,
		Text:  "PO# Total: " + format.Dollars(group.Total()),
		Align: AlignRight,
		Font:  Bold(10),
	})
	return st.Down(30)
}

func (e *Engine) writeDocument(st State, po string, doc *aggregate.DocumentGroup) State {
	st = st.enter(PhaseDocument)

	first := 1
	if len(doc.Items) > 0 {
		first = len(Wrap(doc.Items[0].Description, e.opts.DescriptionWidth))
	}
	if limit := e.freshPageRowLines(e.opts.DocumentMinY); first > limit {
		first = max(limit, 1)
	}
	st, _ = e.Reserve(st, docLabelHeight+colHeaderHeight+rowLineHeight*float64(first), e.opts.DocumentMinY)

	label := "Document: " + doc.Key
	boxTop := st.Y + 10
	st = e.writeDocumentHead(st, label)

	reserve := 0.0
	if e.opts.Overflow == OverflowTruncate {
		// keep room for the trailer, which never moves to another page
		reserve = docTrailerHeight
	}

	rowsOnPage := 0
	freshPage := false
items:
	for i, item := range doc.Items {
		lines := Wrap(item.Description, e.opts.DescriptionWidth)
		cells := true

		for len(lines) > 0 {
			fit := e.rowLinesThatFit(st, reserve)
			if fit >= len(lines) {
				st = e.writeItem(st, item, lines, cells)
				rowsOnPage++
				freshPage = false
				break
			}
			if e.opts.Overflow == OverflowTruncate {
				st.Truncated += len(doc.Items) - i
				break items
			}

			// A row that fits on an empty page moves there whole; a taller
			// one is split across pages.
			if rowsOnPage > 0 && len(lines) <= e.freshPageRowLines(e.opts.BottomMargin) {
				fit = 0
			}
			if fit < 1 && freshPage {
				// margins leave no room at all; still make progress
				fit = 1
			}
			if fit > 0 {
				st = e.writeItem(st, item, lines[:fit], cells)
				lines = lines[fit:]
				cells = false
				rowsOnPage++
				if len(lines) == 0 {
					freshPage = false
					break
				}
			}

			st, boxTop = e.continueDocument(st, boxTop, label)
			rowsOnPage = 0
			freshPage = true
		}
	}

	if !st.Fits(docTrailerHeight, e.opts.BottomMargin) {
		st = e.closeBox(st, boxTop, st.Y+6)
		st = st.newPage()
		st = e.writeRunningHeader(st)
		boxTop = st.Y + 10
		st = e.text(st, LeftX, label+" (continued)", Regular(9))
		st = st.Down(docLabelHeight)
	}

	st = st.Down(5)
	st = e.text(st, LeftX, fmt.Sprintf("Job#: %s | Date: %s | PO#: %s", doc.Key, doc.FirstDate(), po), Regular(8))
	st = st.Down(15)
	st = st.emit(Command{
		Kind:  KindText,
		X:     RightX,
		Y:     st.Y,
		Text:  "Subtotal: " + format.Dollars(doc.Total()),
		Align: AlignRight,
		Font:  Bold(9),
	})
	st = st.Down(10)
	st = e.closeBox(st, boxTop, st.Y)
	return st.Down(15)
}

// continueDocument closes the current box segment and reopens the document
// table on a new page. It returns the top of the new box.
func (e *Engine) continueDocument(st State, boxTop float64, label string) (State, float64) {
	st = e.closeBox(st, boxTop, st.Y+6)
	st = st.newPage()
	st = e.writeRunningHeader(st)
	boxTop = st.Y + 10
	return e.writeDocumentHead(st, label+" (continued)"), boxTop
}

// rowLinesThatFit is the number of table lines that end at or above the
// bottom margin, after keeping reserve points free.
func (e *Engine) rowLinesThatFit(st State, reserve float64) int {
	n := int(math.Floor((st.Y - reserve - e.opts.BottomMargin) / rowLineHeight))
	return max(n, 0)
}

// freshPageRowLines is the number of table lines that fit above minY on a
// continuation page, below the running header and the table head.
func (e *Engine) freshPageRowLines(minY float64) int {
	top := TopY - runningHeaderHeight - docLabelHeight - colHeaderHeight
	return max(int(math.Floor((top-minY)/rowLineHeight)), 0)
}

func (e *Engine) writeDocumentHead(st State, label string) State {
	st = e.text(st, LeftX, label, Regular(9))
	st = st.Down(docLabelHeight)
	st = st.emit(Command{
		Kind: KindRow,
		Y:    st.Y,
		Font: Bold(8),
		Cells: []Cell{
			{X: colCode, Text: "Service"},
			{X: colDesc, Text: "Description"},
			{X: colQty, Text: "Qty"},
			{X: colUnit, Text: "Unit"},
			{X: colRate, Text: "Rate"},
			{X: colAmount, Text: "Amount"},
		},
	})
	return st.Down(colHeaderHeight)
}

// writeItem draws one table row. When cells is false only the description
// lines are drawn, continuing a row split across pages.
func (e *Engine) writeItem(st State, item types.LineItem, lines []string, cells bool) State {
	rest := lines
	if cells {
		st = st.emit(Command{
			Kind: KindRow,
			Y:    st.Y,
			Font: Regular(9),
			Cells: []Cell{
				{X: colCode, Text: item.ServiceCode},
				{X: colDesc, Text: lines[0]},
				{X: colQty, Text: format.Quantity(item.Quantity)},
				{X: colUnit, Text: item.Unit},
				{X: colRate, Text: format.Fixed2(item.Rate)},
				{X: colAmount, Text: format.Fixed2(item.Amount)},
			},
		})
		rest = lines[1:]
	}
	offset := len(lines) - len(rest)
	for k, line := range rest {
		st = st.emit(textAt(colDesc, st.Y-rowLineHeight*float64(k+offset), line, Regular(9)))
	}
	return st.Down(rowLineHeight * float64(len(lines)))
}

func (e *Engine) closeBox(st State, top, bottom float64) State {
	return st.emit(Command{
		Kind:       KindRect,
		X:          BoxX,
		Y:          bottom,
		Width:      BoxWidth,
		Height:     top - bottom,
		StrokeGray: 0.9,
		LineWidth:  0.5,
	})
}

// =============================================================================
// TOTALS AND FOOTER
// =============================================================================

func (e *Engine) writeTotals(st State, agg *aggregate.InvoiceAggregate) State {
	st = st.enter(PhaseTotals)
	st, _ = e.Reserve(st, totalsHeight, e.opts.TotalsMinY)
	st = st.Down(20)

	lines := []struct {
		text string
		font Font
		dy   float64
	}{
		{"Subtotal: " + format.Dollars(agg.Subtotal), Bold(10), 15},
		{e.bp.TaxLabel + ": " + format.Dollars(agg.Tax), Bold(10), 20},
		{"TOTAL DUE: " + format.Dollars(agg.Total), Bold(12), 14},
	}
	for _, l := range lines {
		st = st.emit(Command{Kind: KindText, X: RightX, Y: st.Y, Text: l.text, Align: AlignRight, Font: l.font})
		st = st.Down(l.dy)
	}
	return st
}

// stampFooters adds "Generated on ... | Page i of N" once the page count is
// known.
func (e *Engine) stampFooters(pages []Page) []Page {
	stamp := e.opts.GeneratedAt.Format(format.TimestampLayout)
	for i := range pages {
		text := fmt.Sprintf("Generated on %s | Page %d of %d", stamp, pages[i].Number, len(pages))
		pages[i].Commands = append(pages[i].Commands, textAt(LeftX, FooterY, text, Regular(8)))
	}
	return pages
}

func (e *Engine) text(st State, x float64, s string, f Font) State {
	return st.emit(textAt(x, st.Y, s, f))
}

func textAt(x, y float64, s string, f Font) Command {
	return Command{Kind: KindText, X: x, Y: y, Text: s, Font: f}
}
