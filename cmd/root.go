// =============================================================================
// Charges to Invoice - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicegen)
//   ├── generateCmd (invoicegen generate)
//   ├── checkCmd    (invoicegen check)
//   ├── serveCmd    (invoicegen serve)
//   └── versionCmd  (invoicegen version)
//
// CONFIGURATION:
//   The root command loads the YAML configuration (plus .env and
//   INVOICEGEN_* overrides) and builds the logger before any subcommand runs.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// appConfig and logger are set by the root command before a subcommand runs.
var (
	appConfig *config.Config
	logger    *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "invoicegen",
	Short: "Turn warehouse charge exports into paginated PDF invoices",
	Long: `invoicegen reads a charges export (CSV, XLSX or XLS) for a single client,
validates it, groups the charges by PO and billing document, and renders a
paginated PDF invoice with per-service subtotals, tax and total due.

Example Usage:
  invoicegen generate --input charges.csv --invoice-date 2025-03-01
  invoicegen generate --input-dir ./exports
  invoicegen check --input charges.xlsx
  invoicegen serve --addr :8080`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// A config file named on the command line must exist; the default
		// one is optional.
		cfg, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}

		log, err := logging.New(logging.Config{
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Verbose: verbose,
		})
		if err != nil {
			return err
		}

		appConfig = cfg
		logger = log
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
