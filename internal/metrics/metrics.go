package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded per generation attempt.
const (
	OutcomeSuccess         = "success"
	OutcomeInputError      = "input_error"
	OutcomeValidationError = "validation_error"
	OutcomeRenderError     = "render_error"
	OutcomeCanceled        = "canceled"
)

// Sources of a generation request.
const (
	SourceCLI  = "cli"
	SourceHTTP = "http"
)

// Metrics captures invoice generation signals.
//
// A nil *Metrics is valid and records nothing, so callers that do not care
// about metrics can pass nil around.
type Metrics struct {
	registry *prometheus.Registry

	invoices    *prometheus.CounterVec
	droppedRows *prometheus.CounterVec
	truncated   prometheus.Counter
	pages       prometheus.Histogram
	lineItems   prometheus.Histogram
	duration    *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry. Go runtime and process
// collectors are registered too so /metrics is useful on its own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg)
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicegen_invoices_total",
			Help: "Invoice generation attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		droppedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicegen_dropped_rows_total",
			Help: "Input rows excluded during validation by reason.",
		}, []string{"reason"}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoicegen_truncated_items_total",
			Help: "Line items left out of oversized document tables.",
		}),
		pages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoicegen_invoice_pages",
			Help:    "Pages per generated invoice.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		lineItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoicegen_invoice_line_items",
			Help:    "Line items per generated invoice.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicegen_generation_duration_seconds",
			Help:    "Time from parsed table to PDF bytes.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
	}

	reg.MustRegister(m.invoices, m.droppedRows, m.truncated, m.pages, m.lineItems, m.duration)
	return m
}

// ObserveAttempt counts one generation attempt.
func (m *Metrics) ObserveAttempt(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(source, outcome).Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveInvoice records the shape of a generated invoice.
func (m *Metrics) ObserveInvoice(pages, lineItems, truncated int) {
	if m == nil {
		return
	}
	m.pages.Observe(float64(pages))
	m.lineItems.Observe(float64(lineItems))
	if truncated > 0 {
		m.truncated.Add(float64(truncated))
	}
}

// AddDroppedRows counts rows excluded for reason.
func (m *Metrics) AddDroppedRows(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedRows.WithLabelValues(reason).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
