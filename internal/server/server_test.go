package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/invoice"
	"github.com/ginjaninja78/charges-to-invoice/internal/metrics"
)

const chargesCSV = `Client,Header Reference 2,Billing Ref,Service Code,Description,Charge Qty,Charge Unit,Rate,Charge Amount,Activity Date,Invoice
HE01,PO1,DOC1,HAND,Handling,1,EA,100.00,100.00,03/01/2025,INV-1001
HE01,PO1,DOC2,HAND,Handling,1,EA,50.00,50.00,03/02/2025,INV-1001
HE01,PO1,DOC3,HAND,Handling,1,EA,0,0,03/02/2025,INV-1001
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Layout.LogoPath = filepath.Join(t.TempDir(), "none.png")
	m := metrics.New()
	gen := invoice.NewGenerator(cfg, zap.NewNop(), m)
	return New(cfg, gen, m, zap.NewNop())
}

func upload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/invoices", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestGenerateReturnsPDF(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, upload(t, "charges.csv", chargesCSV, map[string]string{"invoice_date": "2025-03-01"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Houle_Invoice_INV-1001.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "INV-1001", rec.Header().Get("X-Invoice-Number"))
	assert.Equal(t, "1", rec.Header().Get("X-Dropped-Rows"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestGenerateRejectsOtherTenant(t *testing.T) {
	s := newTestServer(t)
	csv := strings.ReplaceAll(chargesCSV, "\nHE01,", "\nXX01,")

	rec := serve(s, upload(t, "charges.csv", csv, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "tenant", body.Rule)
	assert.Contains(t, body.Error, "HE01")
}

func TestGenerateListsAvailableColumns(t *testing.T) {
	s := newTestServer(t)
	csv := "Client,Billing Ref,Charge Amount\nHE01,D1,5\n"

	rec := serve(s, upload(t, "charges.csv", csv, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "missing_column", body.Rule)
	assert.Equal(t, []string{"Client", "Billing Ref", "Charge Amount"}, body.AvailableColumns)
}

func TestGenerateRejectsUnsupportedFile(t *testing.T) {
	rec := serve(newTestServer(t), upload(t, "charges.pdf", "%PDF-1.4", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "unsupported file type")
}

func TestGenerateRequiresFile(t *testing.T) {
	rec := serve(newTestServer(t), upload(t, "", "", map[string]string{"invoice_date": "2025-03-01"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "file")
}

func TestGenerateRejectsBadDates(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, upload(t, "charges.csv", chargesCSV, map[string]string{"invoice_date": "tomorrow"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, upload(t, "charges.csv", chargesCSV, map[string]string{
		"invoice_date": "2025-03-10",
		"due_date":     "2025-03-01",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date_order", decodeError(t, rec).Rule)
}

func TestIndexHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, rec.Body.String(), "Houle Electric Ltd")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	serve(s, upload(t, "charges.csv", chargesCSV, nil))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoicegen_invoices_total{outcome="success",source="http"} 1`)
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	rec := serve(newTestServer(t), req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestParseFormDate(t *testing.T) {
	d, err := parseFormDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.Format("2006-01-02"))

	d, err = parseFormDate("03/01/2025")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.Format("2006-01-02"))

	d, err = parseFormDate("  ")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseFormDate("March 1st")
	assert.Error(t, err)
}
