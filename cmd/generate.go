// =============================================================================
// Charges to Invoice - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, which turns one charges export,
// or every export in a directory, into PDF invoices.
//
// COMMAND USAGE:
//   invoicegen generate --input charges.csv [flags]
//   invoicegen generate --input-dir ./exports [flags]
//
// FLAGS:
//   --input         : A single export to invoice
//   --input-dir     : Invoice every supported export in a directory
//   --invoice-date  : Invoice date (YYYY-MM-DD or MM/DD/YYYY), default today
//   --due-date      : Due date, default invoice date plus the configured days
//   --output-dir    : Where PDFs and logs go (overrides output_dir)
//   --output        : PDF file name for single-file runs
//   --dry-run       : Validate and render without writing anything
//   --workers       : Concurrent files in directory mode
//
// PROCESSING PIPELINE (per file):
//   1. Read the export into a table
//   2. Generate the invoice (validate, aggregate, lay out, render)
//   3. Write the PDF
//   4. Write an error log listing excluded rows, if any
//   5. Archive the export
//
// A failed file gets an error log in the output directory and is left where
// it is. In directory mode the other files keep going.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/charges-to-invoice/internal/format"
	"github.com/ginjaninja78/charges-to-invoice/internal/ingest"
	"github.com/ginjaninja78/charges-to-invoice/internal/invoice"
	"github.com/ginjaninja78/charges-to-invoice/internal/metrics"
	"github.com/ginjaninja78/charges-to-invoice/internal/validation"
	"github.com/ginjaninja78/charges-to-invoice/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type generateOptions struct {
	input       string
	inputDir    string
	invoiceDate string
	dueDate     string
	outputDir   string
	output      string
	dryRun      bool
	workers     int
}

var genOpts generateOptions

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate PDF invoices from charges exports",
	Long: `The generate command reads a charges export, checks that it belongs to the
configured client, groups the charges by PO and billing document, and writes a
paginated PDF invoice.

With --input-dir every .csv, .xlsx, .xlsm and .xls file in the directory is
invoiced concurrently. Errors in one file do not stop the others.

On success:
  - The PDF is written to the output directory
  - Excluded rows are listed in an error log
  - The export is copied to the archive directory (if configured)

On error:
  - An error log is written to the output directory
  - The export is left untouched`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd.Context(), cmd.OutOrStdout(), genOpts)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.StringVar(&genOpts.input, "input", "", "Charges export to invoice")
	f.StringVar(&genOpts.inputDir, "input-dir", "", "Invoice every supported export in this directory")
	f.StringVar(&genOpts.invoiceDate, "invoice-date", "", "Invoice date (YYYY-MM-DD), default today")
	f.StringVar(&genOpts.dueDate, "due-date", "", "Due date (YYYY-MM-DD), default invoice date plus due_days")
	f.StringVar(&genOpts.outputDir, "output-dir", "", "Output directory (overrides output_dir)")
	f.StringVar(&genOpts.output, "output", "", "PDF file name (single file only)")
	f.BoolVar(&genOpts.dryRun, "dry-run", false, "Render without writing the PDF, logs or archive copy")
	f.IntVar(&genOpts.workers, "workers", 4, "Files processed at once in --input-dir mode")

	generateCmd.MarkFlagsMutuallyExclusive("input", "input-dir")
	generateCmd.MarkFlagsOneRequired("input", "input-dir")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// fileResult is the outcome of one export.
type fileResult struct {
	InputFile  string
	OutputFile string
	Invoice    *invoice.Result
	Elapsed    time.Duration
	Err        error
}

// generateRun is everything processFile needs that does not change per file.
type generateRun struct {
	gen         *invoice.Generator
	fm          *utils.FileManager
	log         *zap.Logger
	invoiceDate time.Time
	dueDate     time.Time
	output      string
	dryRun      bool

	mu      sync.Mutex
	claimed map[string]bool
}

func runGenerate(ctx context.Context, out io.Writer, opts generateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	// =========================================================================
	// STEP 1: RESOLVE SETTINGS
	// =========================================================================

	invoiceDate, err := parseDateFlag("invoice-date", opts.invoiceDate)
	if err != nil {
		return err
	}
	dueDate, err := parseDateFlag("due-date", opts.dueDate)
	if err != nil {
		return err
	}

	outputDir := appConfig.OutputDir
	if opts.outputDir != "" {
		outputDir = opts.outputDir
	}
	if opts.output != "" && opts.inputDir != "" {
		return errors.New("--output can only be used with --input")
	}

	fm := utils.NewFileManager(outputDir, appConfig.ArchiveDir)
	fm.UseTimestampSubdirs = appConfig.ArchiveTimestampSubdirs

	run := &generateRun{
		gen:         invoice.NewGenerator(appConfig, logger, nil),
		fm:          fm,
		log:         logger,
		invoiceDate: invoiceDate,
		dueDate:     dueDate,
		output:      opts.output,
		dryRun:      opts.dryRun,
	}
	if !opts.dryRun {
		if err := run.fm.EnsureDirectories(); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "=== Charges to Invoice ===")
	if opts.dryRun {
		fmt.Fprintln(out, "Dry run: nothing will be written")
	}

	// =========================================================================
	// STEP 2: SINGLE FILE
	// =========================================================================

	if opts.input != "" {
		res := run.processFile(ctx, opts.input)
		printFileResult(out, res)
		if res.Err != nil {
			return res.Err
		}
		printInvoiceSummary(out, res.Invoice)
		return nil
	}

	// =========================================================================
	// STEP 3: DISCOVER INPUT FILES
	// =========================================================================

	fmt.Fprintln(out, "Discovering input files...")
	inputFiles, err := utils.DiscoverInputFiles(opts.inputDir, ingest.SupportedExtensions)
	if err != nil {
		return err
	}
	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No charges exports found in the input directory.")
		return nil
	}
	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 4: PROCESS FILES CONCURRENTLY
	// =========================================================================

	workers := opts.workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	results := make(chan fileResult, len(inputFiles))
	sem := make(chan struct{}, workers)

	for _, file := range inputFiles {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- run.processFile(ctx, path)
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 5: COLLECT RESULTS AND WRITE SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}

	for res := range results {
		printFileResult(out, res)
		if res.Err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    res.InputFile,
				ErrorMessage: res.Err.Error(),
			})
			continue
		}
		summary.SuccessfulFiles++
		summary.TotalRows += res.Invoice.Stats.TotalRows
		summary.DroppedRows += res.Invoice.Stats.DroppedRows
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:     res.InputFile,
			OutputFile:    res.OutputFile,
			InvoiceNumber: res.Invoice.InvoiceNumber,
			Rows:          res.Invoice.Stats.BilledRows,
			Pages:         res.Invoice.Stats.Pages,
			ProcessTime:   res.Elapsed,
		})
	}
	summary.EndTime = time.Now()

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Dropped rows:    %d\n", summary.DroppedRows)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if !opts.dryRun {
		path, err := utils.WriteSummaryLog(summary, outputDir)
		if err != nil {
			logger.Warn("Failed to write batch summary", zap.Error(err))
		} else {
			fmt.Fprintf(out, "Summary:         %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// processFile runs the pipeline for one export and never panics.
func (r *generateRun) processFile(ctx context.Context, path string) fileResult {
	start := time.Now()
	res := fileResult{InputFile: path}
	log := r.log.With(zap.String("file", path))

	table, err := ingest.ReadFile(path, appConfig.CSV)
	if err == nil {
		res.Invoice, err = r.gen.Generate(ctx, invoice.Request{
			Table:       table,
			InvoiceDate: r.invoiceDate,
			DueDate:     r.dueDate,
			Source:      metrics.SourceCLI,
		})
	}
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		r.writeFailureLog(path, err)
		return res
	}

	if r.dryRun {
		res.Elapsed = time.Since(start)
		return res
	}

	name := res.Invoice.FileName
	if r.output != "" {
		name = r.output
	}
	name = r.claimOutputName(name, path)
	res.OutputFile, err = r.fm.WriteOutput(name, res.Invoice.PDF)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	if len(res.Invoice.Dropped) > 0 {
		logPath, err := utils.WriteErrorLog(droppedEntries(path, res.Invoice.Dropped), r.fm.OutputDir)
		if err != nil {
			log.Warn("Failed to write dropped rows log", zap.Error(err))
		} else {
			log.Info("Dropped rows logged", zap.String("log", logPath), zap.Int("rows", len(res.Invoice.Dropped)))
		}
	}

	if archived, err := r.fm.ArchiveInputFile(path); err != nil {
		log.Warn("Failed to archive export", zap.Error(err))
	} else if archived != "" {
		log.Debug("Export archived", zap.String("archive", archived))
	}

	res.Elapsed = time.Since(start)
	return res
}

// claimOutputName reserves a PDF name for one export. Exports that resolve to
// a name already taken in this run get their own base name appended:
// Houle_Invoice_INV-1001_march.pdf.
func (r *generateRun) claimOutputName(name, input string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed == nil {
		r.claimed = make(map[string]bool)
	}

	candidate := name
	if r.claimed[candidate] {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		src := utils.SanitizeFileName(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
		candidate = fmt.Sprintf("%s_%s%s", stem, src, ext)
		for n := 2; r.claimed[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%s_%d%s", stem, src, n, ext)
		}
	}
	r.claimed[candidate] = true
	return candidate
}

// writeFailureLog records why an export produced no invoice.
func (r *generateRun) writeFailureLog(path string, err error) {
	if r.dryRun {
		return
	}
	entry := utils.ErrorLogEntry{
		Timestamp:    time.Now(),
		FileName:     filepath.Base(path),
		ErrorType:    invoice.Outcome(err),
		ErrorMessage: err.Error(),
	}
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		entry.ErrorType = string(vErr.Rule)
		entry.FieldName = vErr.Field
	}
	if _, logErr := utils.WriteErrorLog([]utils.ErrorLogEntry{entry}, r.fm.OutputDir); logErr != nil {
		r.log.Warn("Failed to write error log", zap.String("file", path), zap.Error(logErr))
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func droppedEntries(path string, dropped []validation.DroppedRow) []utils.ErrorLogEntry {
	now := time.Now()
	entries := make([]utils.ErrorLogEntry, 0, len(dropped))
	for _, d := range dropped {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     filepath.Base(path),
			ErrorType:    string(d.Reason),
			ErrorMessage: d.Reason.Description(),
			RowNumber:    d.Row,
			FieldValue:   d.Value,
		})
	}
	return entries
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := format.ParseInputDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func printFileResult(out io.Writer, res fileResult) {
	base := filepath.Base(res.InputFile)
	switch {
	case res.Err != nil:
		fmt.Fprintf(out, "  ✗ %s: %v\n", base, res.Err)
	case res.OutputFile == "":
		fmt.Fprintf(out, "  ✓ %s (invoice %s, %d page(s), not written)\n", base, res.Invoice.InvoiceNumber, res.Invoice.Stats.Pages)
	default:
		fmt.Fprintf(out, "  ✓ %s -> %s\n", base, res.OutputFile)
	}
}

func printInvoiceSummary(out io.Writer, res *invoice.Result) {
	fmt.Fprintln(out, "\n=== Invoice Summary ===")
	fmt.Fprintf(out, "Invoice:         %s\n", res.InvoiceNumber)
	fmt.Fprintf(out, "Invoice date:    %s\n", res.InvoiceDate.Format(format.DateLayout))
	fmt.Fprintf(out, "Due date:        %s\n", res.DueDate.Format(format.DateLayout))
	fmt.Fprintf(out, "Rows:            %d billed, %d dropped\n", res.Stats.BilledRows, res.Stats.DroppedRows)
	fmt.Fprintf(out, "PO groups:       %d\n", res.Stats.Groups)
	fmt.Fprintf(out, "Documents:       %d\n", res.Stats.Documents)
	fmt.Fprintf(out, "Pages:           %d\n", res.Stats.Pages)
	if res.Stats.TruncatedItems > 0 {
		fmt.Fprintf(out, "Truncated items: %d\n", res.Stats.TruncatedItems)
	}
	fmt.Fprintf(out, "Subtotal:        $%s\n", format.Money(res.Subtotal))
	fmt.Fprintf(out, "Tax:             $%s\n", format.Money(res.Tax))
	fmt.Fprintf(out, "Total due:       $%s\n", format.Money(res.Total))
}
