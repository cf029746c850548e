// =============================================================================
// Charges to Invoice - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Everything that is printed
// on the invoice but is not part of the uploaded charges (company letterhead,
// bill-to block, warehouse and payment instructions, tax rate) lives here, as
// do the column names of the input contract and the layout thresholds.
//
// LOAD ORDER:
//   1. Built-in defaults (the Houle Electric / 18 Wheels invoice)
//   2. YAML file (config.yaml), if present
//   3. .env file and INVOICEGEN_* environment variables
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "INVOICEGEN_"

// Overflow modes for documents whose rows do not fit on one page.
const (
	OverflowContinue = "continue"
	OverflowTruncate = "truncate"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where generated PDFs and error logs are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// OutputNameFormat defines the PDF file name.
	// Placeholders:
	//   {invoice}   - Invoice number from the charges
	//   {client}    - Tenant code
	//   {date}      - Invoice date (YYYYMMDD)
	//   {timestamp} - Generation time (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	// Default: "Houle_Invoice_{invoice}.pdf"
	OutputNameFormat string `yaml:"output_name_format"`

	// ArchiveDir receives a copy of every export that produced an invoice.
	// Empty disables archiving. Default: ""
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveTimestampSubdirs files archived exports under YYYY/MM/DD.
	// Default: false
	ArchiveTimestampSubdirs bool `yaml:"archive_timestamp_subdirs"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat: "console" or "json". Default: "console"
	LogFormat string `yaml:"log_format"`

	Tenant    TenantConfig    `yaml:"tenant"`
	Company   CompanyConfig   `yaml:"company"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Payment   PaymentConfig   `yaml:"payment"`
	Invoice   InvoiceConfig   `yaml:"invoice"`
	Columns   ColumnsConfig   `yaml:"columns"`
	CSV       CSVSettings     `yaml:"csv"`
	Layout    LayoutConfig    `yaml:"layout"`
	Server    ServerConfig    `yaml:"server"`

	taxRate decimal.Decimal
}

// TenantConfig describes the single client this tool bills.
type TenantConfig struct {
	// Code is the only value accepted in the Client column.
	Code string `yaml:"code"`

	// Name and Address are printed in the Bill To block.
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// CompanyConfig is the letterhead of the issuing company.
type CompanyConfig struct {
	Name       string `yaml:"name"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
	TaxRegNo   string `yaml:"tax_reg_no"`
	Terms      string `yaml:"terms"`
	RunningTag string `yaml:"running_tag"`
}

// WarehouseConfig is the warehouse block printed below the bill-to block.
type WarehouseConfig struct {
	Title string   `yaml:"title"`
	Lines []string `yaml:"lines"`
}

// PaymentConfig holds the payment instructions.
type PaymentConfig struct {
	Lines []string `yaml:"lines"`
}

// InvoiceConfig holds the numeric and labelling rules of the invoice.
type InvoiceConfig struct {
	// TaxRate is a decimal string. Default: "0.05"
	TaxRate string `yaml:"tax_rate"`

	// TaxLabel is printed on the totals block. Default: "GST (5%)"
	TaxLabel string `yaml:"tax_label"`

	// DueDays is used when no due date is supplied. Default: 30
	DueDays int `yaml:"due_days"`

	// MissingInvoiceNumber is used when the Invoice column is absent or blank.
	// Default: "N/A"
	MissingInvoiceNumber string `yaml:"missing_invoice_number"`
}

// =============================================================================
// INPUT COLUMN CONTRACT
// =============================================================================

// ColumnsConfig names the input columns. Lookups are case and whitespace
// insensitive.
type ColumnsConfig struct {
	Tenant string `yaml:"tenant"`

	// OuterAliases are tried in order; the first present column wins.
	OuterAliases []string `yaml:"outer_aliases"`

	Document     string `yaml:"document"`
	Amount       string `yaml:"amount"`
	Quantity     string `yaml:"quantity"`
	Unit         string `yaml:"unit"`
	ServiceCode  string `yaml:"service_code"`
	Description  string `yaml:"description"`
	Rate         string `yaml:"rate"`
	ActivityDate string `yaml:"activity_date"`
	Invoice      string `yaml:"invoice"`
}

// CSVSettings contains settings for parsing CSV uploads.
type CSVSettings struct {
	// Delimiter accepts a character or one of "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column headers. Default: 1
	HeaderRow int `yaml:"header_row"`
}

// LayoutConfig holds page geometry and page-break thresholds in points.
type LayoutConfig struct {
	DescriptionWidth int     `yaml:"description_width"`
	SummaryMinY      float64 `yaml:"summary_min_y"`
	DocumentMinY     float64 `yaml:"document_min_y"`
	TotalsMinY       float64 `yaml:"totals_min_y"`
	BottomMargin     float64 `yaml:"bottom_margin"`

	// Overflow is "continue" (spill rows onto continuation pages) or
	// "truncate" (stop the document table and report the dropped rows).
	Overflow string `yaml:"overflow"`

	// LogoPath is optional; a missing file is ignored.
	LogoPath string `yaml:"logo_path"`
}

// ServerConfig configures the HTTP upload surface.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at configPath.
//
// PARAMETERS:
//   - configPath: Path to the YAML file.
//   - required:   When false, a missing file falls back to the defaults.
//
// RETURNS:
//   - The loaded configuration with defaults and environment overrides applied.
//   - An error if the file cannot be parsed or the result is invalid.
func Load(configPath string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Tenant: TenantConfig{
			Code:    "HE01",
			Name:    "Houle Electric Ltd",
			Address: "5050 North Fraser Way Burnaby BC Canada V5J 0H1",
		},
		Company: CompanyConfig{
			Name:     "18 Wheels Logistics Limited Partnership",
			Phone:    "604-439-8938",
			Email:    "receivable@18wheels.ca",
			TaxRegNo: "749984340",
			Terms:    "Net 30 days",
		},
		Warehouse: WarehouseConfig{
			Title: "Warehouse",
			Lines: []string{
				"18 Wheels Meadow Warehouse",
				"8335 Meadow Ave",
				"Burnaby, BC V3N 2W1 Canada",
			},
		},
		Payment: PaymentConfig{
			Lines: []string{
				`Please make payment to "18 Wheels Supply Chain Ltd."`,
				"Mail payment to 7185 11th Ave, Burnaby, BC V3N 2M5.",
			},
		},
		Columns: ColumnsConfig{
			Tenant:       "Client",
			OuterAliases: []string{"Header Reference 2", "Header User 2", "Header ref"},
			Document:     "Billing Ref",
			Amount:       "Charge Amount",
			Quantity:     "Charge Qty",
			Unit:         "Charge Unit",
			ServiceCode:  "Service Code",
			Description:  "Description",
			Rate:         "Rate",
			ActivityDate: "Activity Date",
			Invoice:      "Invoice",
		},
		Layout: LayoutConfig{
			LogoPath: "logo.png",
		},
	}
	applyDefaults(cfg)
	_ = cfg.validate()
	return cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "Houle_Invoice_{invoice}.pdf"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.Company.RunningTag == "" {
		cfg.Company.RunningTag = "INVOICE"
	}
	if cfg.Invoice.TaxRate == "" {
		cfg.Invoice.TaxRate = "0.05"
	}
	if cfg.Invoice.TaxLabel == "" {
		cfg.Invoice.TaxLabel = "GST (5%)"
	}
	if cfg.Invoice.DueDays == 0 {
		cfg.Invoice.DueDays = 30
	}
	if cfg.Invoice.MissingInvoiceNumber == "" {
		cfg.Invoice.MissingInvoiceNumber = "N/A"
	}
	if cfg.CSV.Delimiter == "" {
		cfg.CSV.Delimiter = ","
	}
	if cfg.CSV.HeaderRow == 0 {
		cfg.CSV.HeaderRow = 1
	}
	if cfg.Layout.DescriptionWidth == 0 {
		cfg.Layout.DescriptionWidth = 35
	}
	if cfg.Layout.SummaryMinY == 0 {
		cfg.Layout.SummaryMinY = 150
	}
	if cfg.Layout.DocumentMinY == 0 {
		cfg.Layout.DocumentMinY = 200
	}
	if cfg.Layout.TotalsMinY == 0 {
		cfg.Layout.TotalsMinY = 150
	}
	if cfg.Layout.BottomMargin == 0 {
		cfg.Layout.BottomMargin = 100
	}
	if cfg.Layout.Overflow == "" {
		cfg.Layout.Overflow = OverflowContinue
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
}

// applyEnvOverrides lets deployments change the few settings that differ
// between machines without editing the YAML file.
func applyEnvOverrides(cfg *Config) {
	cfg.OutputDir = getenv("OUTPUT_DIR", cfg.OutputDir)
	cfg.ArchiveDir = getenv("ARCHIVE_DIR", cfg.ArchiveDir)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.Tenant.Code = getenv("TENANT_CODE", cfg.Tenant.Code)
	cfg.Invoice.TaxRate = getenv("TAX_RATE", cfg.Invoice.TaxRate)
	cfg.Layout.LogoPath = getenv("LOGO_PATH", cfg.Layout.LogoPath)
	cfg.Server.Addr = getenv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.MaxUploadMB = getenvInt64("MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)
}

// validate checks the configuration and caches parsed values.
func (c *Config) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.Invoice.TaxRate))
	if err != nil {
		return fmt.Errorf("tax_rate %q is not a decimal: %w", c.Invoice.TaxRate, err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("tax_rate must not be negative, got %s", rate)
	}
	c.taxRate = rate

	if strings.TrimSpace(c.Tenant.Code) == "" {
		return errors.New("tenant.code is required")
	}
	if len(c.Columns.OuterAliases) == 0 {
		return errors.New("columns.outer_aliases must list at least one column")
	}
	if c.Layout.DescriptionWidth < 1 {
		return fmt.Errorf("layout.description_width must be positive, got %d", c.Layout.DescriptionWidth)
	}
	if c.Layout.BottomMargin <= 0 {
		return fmt.Errorf("layout.bottom_margin must be positive, got %v", c.Layout.BottomMargin)
	}
	switch c.Layout.Overflow {
	case OverflowContinue, OverflowTruncate:
	default:
		return fmt.Errorf("layout.overflow must be %q or %q, got %q", OverflowContinue, OverflowTruncate, c.Layout.Overflow)
	}
	if c.Invoice.DueDays < 0 {
		return fmt.Errorf("invoice.due_days must not be negative, got %d", c.Invoice.DueDays)
	}
	return nil
}

// TaxRate returns the parsed tax rate.
func (c *Config) TaxRate() decimal.Decimal {
	return c.taxRate
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
