package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingOptionalFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "HE01", cfg.Tenant.Code)
	assert.Equal(t, []string{"Header Reference 2", "Header User 2", "Header ref"}, cfg.Columns.OuterAliases)
	assert.Equal(t, "0.05", cfg.TaxRate().String())
	assert.Equal(t, 35, cfg.Layout.DescriptionWidth)
	assert.Equal(t, OverflowContinue, cfg.Layout.Overflow)
	assert.Equal(t, "Houle_Invoice_{invoice}.pdf", cfg.OutputNameFormat)
}

func TestLoadMissingRequiredFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
output_dir: /tmp/invoices
invoice:
  tax_rate: "0.12"
  tax_label: "HST (12%)"
layout:
  overflow: truncate
  summary_min_y: 180
warehouse:
  title: Depot
  lines: ["1 Main St"]
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/invoices", cfg.OutputDir)
	assert.Equal(t, "0.12", cfg.TaxRate().String())
	assert.Equal(t, "HST (12%)", cfg.Invoice.TaxLabel)
	assert.Equal(t, OverflowTruncate, cfg.Layout.Overflow)
	assert.Equal(t, 180.0, cfg.Layout.SummaryMinY)
	assert.Equal(t, 200.0, cfg.Layout.DocumentMinY)
	assert.Equal(t, []string{"1 Main St"}, cfg.Warehouse.Lines)
	assert.Equal(t, "Houle Electric Ltd", cfg.Tenant.Name)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("INVOICEGEN_OUTPUT_DIR", "/srv/out")
	t.Setenv("INVOICEGEN_TAX_RATE", "0.07")
	t.Setenv("INVOICEGEN_MAX_UPLOAD_MB", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "/srv/out", cfg.OutputDir)
	assert.Equal(t, "0.07", cfg.TaxRate().String())
	assert.Equal(t, int64(5), cfg.Server.MaxUploadMB)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad tax rate", "invoice:\n  tax_rate: abc\n", "tax_rate"},
		{"negative tax rate", "invoice:\n  tax_rate: \"-0.1\"\n", "must not be negative"},
		{"bad overflow", "layout:\n  overflow: wrap\n", "layout.overflow"},
		{"malformed yaml", "layout: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultHasParsedTaxRate(t *testing.T) {
	assert.Equal(t, "0.05", Default().TaxRate().String())
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"), true)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Tenant, cfg.Tenant)
	assert.Equal(t, def.Company, cfg.Company)
	assert.Equal(t, def.Warehouse, cfg.Warehouse)
	assert.Equal(t, def.Payment, cfg.Payment)
	assert.Equal(t, def.Invoice, cfg.Invoice)
	assert.Equal(t, def.Columns, cfg.Columns)
	assert.Equal(t, def.CSV, cfg.CSV)
	assert.Equal(t, def.Layout, cfg.Layout)
	assert.Equal(t, def.Server, cfg.Server)
}

func TestLoadArchiveTimestampSubdirs(t *testing.T) {
	cfg, err := Load(writeConfig(t, "archive_dir: ./archive\narchive_timestamp_subdirs: true\n"), true)
	require.NoError(t, err)

	assert.Equal(t, "./archive", cfg.ArchiveDir)
	assert.True(t, cfg.ArchiveTimestampSubdirs)
	assert.False(t, Default().ArchiveTimestampSubdirs)
}
