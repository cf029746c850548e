package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAttempt(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.ObserveAttempt(SourceCLI, OutcomeSuccess, 20*time.Millisecond)
	m.ObserveAttempt(SourceCLI, OutcomeSuccess, 30*time.Millisecond)
	m.ObserveAttempt(SourceHTTP, OutcomeValidationError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.invoices.WithLabelValues(SourceCLI, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoices.WithLabelValues(SourceHTTP, OutcomeValidationError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestDroppedRowsAndTruncation(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.AddDroppedRows("amount_not_positive", 3)
	m.AddDroppedRows("amount_not_positive", 0)
	m.ObserveInvoice(4, 120, 17)
	m.ObserveInvoice(1, 2, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.droppedRows.WithLabelValues("amount_not_positive")))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.truncated))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAttempt(SourceCLI, OutcomeSuccess, time.Second)
		m.ObserveInvoice(1, 1, 1)
		m.AddDroppedRows("x", 1)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveAttempt(SourceHTTP, OutcomeSuccess, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `invoicegen_invoices_total{outcome="success",source="http"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
