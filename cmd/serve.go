// =============================================================================
// Charges to Invoice - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the HTTP upload surface.
//
// COMMAND USAGE:
//   invoicegen serve [--addr :8080]
//
// The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/charges-to-invoice/internal/invoice"
	"github.com/ginjaninja78/charges-to-invoice/internal/metrics"
	"github.com/ginjaninja78/charges-to-invoice/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the invoice upload form and API over HTTP",
	Long: `The serve command starts an HTTP server. POST a charges export to
/invoices (multipart field "file", optional "invoice_date" and "due_date") and
the PDF invoice comes back as a download. Prometheus metrics are exposed on
/metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			appConfig.Server.Addr = serveAddr
		}

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		gen := invoice.NewGenerator(appConfig, logger, m)
		return server.New(appConfig, gen, m, logger).ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
