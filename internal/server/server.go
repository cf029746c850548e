// =============================================================================
// Charges to Invoice - HTTP Server
// =============================================================================
//
// ROUTES:
//   GET  /          Upload form
//   POST /invoices  Multipart upload (file, invoice_date, due_date) -> PDF
//   GET  /healthz   Liveness probe
//   GET  /metrics   Prometheus metrics
//
// Bad uploads (unreadable file, failed validation, bad dates) answer 400 with
// a JSON body. Failures after validation answer 500.
//
// =============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/format"
	"github.com/ginjaninja78/charges-to-invoice/internal/ingest"
	"github.com/ginjaninja78/charges-to-invoice/internal/invoice"
	"github.com/ginjaninja78/charges-to-invoice/internal/metrics"
	"github.com/ginjaninja78/charges-to-invoice/internal/validation"
)

// Server is the upload surface in front of an invoice.Generator.
type Server struct {
	cfg     *config.Config
	gen     *invoice.Generator
	metrics *metrics.Metrics
	logger  *zap.Logger
	router  *mux.Router
}

// New creates a Server and registers its routes.
func New(cfg *config.Config, gen *invoice.Generator, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		gen:     gen,
		metrics: m,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	s.router.Use(s.requestLogger)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/invoices", s.handleGenerate).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Company}} - Invoice Generator</title></head>
<body>
<h1>Generate invoice for {{.Tenant}}</h1>
<form action="/invoices" method="post" enctype="multipart/form-data">
  <p><label>Charges export (CSV, XLSX, XLS): <input type="file" name="file" accept=".csv,.xlsx,.xlsm,.xls" required></label></p>
  <p><label>Invoice date: <input type="date" name="invoice_date"></label></p>
  <p><label>Due date: <input type="date" name="due_date"></label></p>
  <p><button type="submit">Generate PDF</button></p>
</form>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Company, Tenant string }{s.cfg.Company.Name, s.cfg.Tenant.Name}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("Failed to render index", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New(`missing "file" in upload`))
		return
	}
	defer file.Close()

	invoiceDate, err := parseFormDate(r.FormValue("invoice_date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invoice_date: %w", err))
		return
	}
	dueDate, err := parseFormDate(r.FormValue("due_date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("due_date: %w", err))
		return
	}

	table, err := ingest.ReadTable(header.Filename, file, s.cfg.CSV)
	if err != nil {
		s.metrics.ObserveAttempt(metrics.SourceHTTP, metrics.OutcomeInputError, 0)
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.gen.Generate(r.Context(), invoice.Request{
		Table:       table,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		Source:      metrics.SourceHTTP,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.Header().Set("X-Invoice-Number", res.InvoiceNumber)
	w.Header().Set("X-Dropped-Rows", strconv.Itoa(res.Stats.DroppedRows))
	if res.Stats.TruncatedItems > 0 {
		w.Header().Set("X-Truncated-Items", strconv.Itoa(res.Stats.TruncatedItems))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		s.logger.Warn("Failed to write PDF response", zap.Error(err))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

type errorResponse struct {
	Error            string   `json:"error"`
	Rule             string   `json:"rule,omitempty"`
	Field            string   `json:"field,omitempty"`
	AvailableColumns []string `json:"available_columns,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	body := errorResponse{Error: err.Error()}

	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		body.Error = vErr.Message
		body.Rule = string(vErr.Rule)
		body.Field = vErr.Field
		body.AvailableColumns = vErr.Available
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch invoice.Outcome(err) {
	case metrics.OutcomeInputError, metrics.OutcomeValidationError:
		return http.StatusBadRequest
	case metrics.OutcomeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseFormDate reads an optional date field. Blank means "use the default".
func parseFormDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return format.ParseInputDate(s)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("HTTP request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
