// =============================================================================
// Charges to Invoice - Generator
// =============================================================================
//
// This module runs the whole pipeline for one parsed charges table and
// returns the finished PDF bytes.
//
// PIPELINE:
//   1. Resolve the invoice and due dates
//   2. Validate the table (tenant, columns, numeric coercion)
//   3. Aggregate rows into PO groups, documents and rollups
//   4. Lay the invoice out onto pages
//   5. Render the pages to PDF
//
// Steps 1 to 3 fail with a *validation.ValidationError. Steps 4 and 5 fail
// with a *RenderError; a panic inside them is recovered into one as well.
// Nothing is written to disk here; callers decide where the bytes go.
//
// CONCURRENCY:
//   A Generator holds no per-invoice state and can serve concurrent requests.
//
// =============================================================================

package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ginjaninja78/charges-to-invoice/internal/aggregate"
	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/ingest"
	"github.com/ginjaninja78/charges-to-invoice/internal/layout"
	"github.com/ginjaninja78/charges-to-invoice/internal/metrics"
	"github.com/ginjaninja78/charges-to-invoice/internal/pdfwriter"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
	"github.com/ginjaninja78/charges-to-invoice/internal/validation"
	"github.com/ginjaninja78/charges-to-invoice/pkg/utils"
)

// =============================================================================
// ERRORS
// =============================================================================

// RenderError reports a failure after the charges were accepted, while
// laying out or writing the PDF.
type RenderError struct {
	// Stage is "layout" or "pdf".
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed during %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Request is one invoice to generate.
type Request struct {
	Table *types.Table

	// InvoiceDate defaults to today.
	InvoiceDate time.Time

	// DueDate defaults to InvoiceDate plus the configured due days.
	DueDate time.Time

	// Source labels metrics ("cli" or "http").
	Source string
}

// Stats describes what went into the invoice.
type Stats struct {
	TotalRows       int
	BilledRows      int
	DroppedRows     int
	DroppedByReason map[validation.DropReason]int
	Groups          int
	Documents       int
	Pages           int
	TruncatedItems  int
	ProcessingTime  time.Duration
}

// Result is a generated invoice.
type Result struct {
	PDF      []byte
	FileName string

	InvoiceNumber string
	InvoiceDate   time.Time
	DueDate       time.Time

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	Aggregate *aggregate.InvoiceAggregate
	Dropped   []validation.DroppedRow
	Stats     Stats
}

// Prepared is a validated and aggregated table that has not been rendered.
type Prepared struct {
	Validation *validation.Result
	Aggregate  *aggregate.InvoiceAggregate
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator turns charges tables into invoices.
type Generator struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	validator *validation.Validator
	now       func() time.Time
}

// NewGenerator creates a Generator. m may be nil.
func NewGenerator(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		validator: validation.NewValidator(validation.OptionsFromConfig(cfg)),
		now:       time.Now,
	}
}

// WithClock replaces the time source used for default dates and the footer.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Prepare validates and aggregates a table without rendering it.
func (g *Generator) Prepare(table *types.Table) (*Prepared, error) {
	vr, err := g.validator.Validate(table)
	if err != nil {
		return nil, err
	}
	agg := aggregate.Aggregate(vr.Rows, aggregate.Options{
		InvoiceNumber: vr.InvoiceNumber,
		TaxRate:       g.cfg.TaxRate(),
	})
	return &Prepared{Validation: vr, Aggregate: agg}, nil
}

// Generate runs the pipeline for req.
//
// RETURNS:
//   - The invoice, including PDF bytes and a suggested file name.
//   - A *validation.ValidationError, a *RenderError, or the context error.
func (g *Generator) Generate(ctx context.Context, req Request) (res *Result, err error) {
	began := time.Now()
	start := g.now()
	source := req.Source
	if source == "" {
		source = metrics.SourceCLI
	}

	log := g.logger.With(zap.String("source", source))
	if req.Table != nil {
		log = log.With(zap.String("file", req.Table.SourceName))
	}

	defer func() {
		g.metrics.ObserveAttempt(source, Outcome(err), time.Since(began))
		if err != nil {
			log.Warn("Invoice generation failed", zap.Error(err))
		}
	}()

	// =========================================================================
	// STEP 1: RESOLVE DATES
	// =========================================================================

	invoiceDate, dueDate := g.resolveDates(req.InvoiceDate, req.DueDate)
	if err := validation.ValidateDates(invoiceDate, dueDate); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2-3: VALIDATE AND AGGREGATE
	// =========================================================================

	prepared, err := g.Prepare(req.Table)
	if err != nil {
		return nil, err
	}
	vr, agg := prepared.Validation, prepared.Aggregate

	for reason, n := range vr.DroppedByReason() {
		g.metrics.AddDroppedRows(string(reason), n)
	}
	log.Debug("Validated charges",
		zap.Int("rows", vr.TotalRows),
		zap.Int("billed", len(vr.Rows)),
		zap.Int("dropped", vr.Dropped()),
		zap.String("outer_column", vr.OuterColumn),
		zap.String("invoice", agg.InvoiceNumber))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 4-5: LAYOUT AND RENDER
	// =========================================================================

	pages, truncated, pdf, err := g.render(agg, invoiceDate, dueDate, start)
	if err != nil {
		return nil, err
	}
	if truncated > 0 {
		log.Warn("Oversized documents were truncated", zap.Int("items", truncated))
	}
	g.metrics.ObserveInvoice(pages, len(vr.Rows), truncated)

	res = &Result{
		PDF:           pdf,
		FileName:      g.fileName(agg.InvoiceNumber, invoiceDate),
		InvoiceNumber: agg.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Subtotal:      agg.Subtotal,
		Tax:           agg.Tax,
		Total:         agg.Total,
		Aggregate:     agg,
		Dropped:       vr.DroppedRows,
		Stats: Stats{
			TotalRows:       vr.TotalRows,
			BilledRows:      len(vr.Rows),
			DroppedRows:     vr.Dropped(),
			DroppedByReason: vr.DroppedByReason(),
			Groups:          agg.Groups.Len(),
			Documents:       agg.DocumentCount(),
			Pages:           pages,
			TruncatedItems:  truncated,
			ProcessingTime:  time.Since(began),
		},
	}

	log.Info("Invoice generated",
		zap.String("invoice", res.InvoiceNumber),
		zap.Int("pages", pages),
		zap.Int("documents", res.Stats.Documents),
		zap.String("total", res.Total.StringFixed(2)))

	return res, nil
}

// render runs layout and PDF output, converting panics into a RenderError.
func (g *Generator) render(agg *aggregate.InvoiceAggregate, invoiceDate, dueDate, generatedAt time.Time) (pages, truncated int, pdf []byte, err error) {
	stage := "layout"
	defer func() {
		if r := recover(); r != nil {
			err = &RenderError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	bp := layout.BoilerplateFromConfig(g.cfg, invoiceDate, dueDate)
	if bp.LogoPath != "" && !utils.FileExists(bp.LogoPath) {
		g.logger.Debug("Logo not found, rendering without it", zap.String("path", bp.LogoPath))
		bp.LogoPath = ""
	}

	engine := layout.NewEngine(layout.OptionsFromConfig(g.cfg.Layout, generatedAt), bp)
	laid, err := engine.Layout(agg)
	if err != nil {
		return 0, 0, nil, &RenderError{Stage: stage, Err: err}
	}

	stage = "pdf"
	writer := pdfwriter.New(pdfwriter.Metadata{
		Title:     "Invoice " + agg.InvoiceNumber,
		Author:    g.cfg.Company.Name,
		Creator:   "invoicegen",
		CreatedAt: generatedAt,
	})
	pdf, err = writer.RenderBytes(laid.Pages)
	if err != nil {
		return 0, 0, nil, &RenderError{Stage: stage, Err: err}
	}

	return len(laid.Pages), laid.TruncatedItems, pdf, nil
}

func (g *Generator) resolveDates(invoiceDate, dueDate time.Time) (time.Time, time.Time) {
	if invoiceDate.IsZero() {
		now := g.now()
		invoiceDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	if dueDate.IsZero() {
		dueDate = invoiceDate.AddDate(0, 0, g.cfg.Invoice.DueDays)
	}
	return invoiceDate, dueDate
}

func (g *Generator) fileName(invoiceNumber string, invoiceDate time.Time) string {
	return utils.GenerateOutputFileName(g.cfg.OutputNameFormat, map[string]string{
		"invoice": invoiceNumber,
		"client":  g.cfg.Tenant.Code,
		"date":    invoiceDate.Format("20060102"),
	})
}

// Outcome classifies err for metrics and HTTP status mapping.
func Outcome(err error) string {
	var (
		inputErr  *ingest.InputFormatError
		validErr  *validation.ValidationError
		renderErr *RenderError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	case errors.As(err, &inputErr):
		return metrics.OutcomeInputError
	case errors.As(err, &validErr):
		return metrics.OutcomeValidationError
	case errors.As(err, &renderErr):
		return metrics.OutcomeRenderError
	default:
		return metrics.OutcomeRenderError
	}
}
