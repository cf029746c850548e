package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/charges-to-invoice/internal/config"
	"github.com/ginjaninja78/charges-to-invoice/internal/types"
)

var standardHeaders = []string{
	"Client", "Header Reference 2", "Billing Ref", "Service Code", "Description",
	"Charge Qty", "Charge Unit", "Rate", "Charge Amount", "Activity Date", "Invoice",
}

func newValidator() *Validator {
	return NewValidator(OptionsFromConfig(config.Default()))
}

func chargeRow(outer, doc, amount string) map[string]string {
	return map[string]string{
		"Client":             "HE01",
		"Header Reference 2": outer,
		"Billing Ref":        doc,
		"Service Code":       "STOR",
		"Description":        "Pallet storage",
		"Charge Qty":         "2",
		"Charge Unit":        "PLT",
		"Rate":               "12.50",
		"Charge Amount":      amount,
		"Activity Date":      "2025-01-15",
		"Invoice":            "INV-1001",
	}
}

func table(rows ...map[string]string) *types.Table {
	return &types.Table{Headers: standardHeaders, Rows: rows}
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T", err)
	return vErr
}

func TestValidateCleansRows(t *testing.T) {
	res, err := newValidator().Validate(table(
		chargeRow("PO1", "DOC1", "100.00"),
		chargeRow("PO1", "DOC2", "abc"),
		chargeRow("PO1", "DOC3", "0"),
		chargeRow("PO1", "DOC4", "-5"),
		chargeRow("PO2", "DOC5", "1,250.75"),
	))
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "DOC1", res.Rows[0].InnerKey)
	assert.Equal(t, "1250.75", res.Rows[1].Amount.String())
	assert.Equal(t, 5, res.Rows[1].SourceRow)
	assert.Equal(t, "Header Reference 2", res.OuterColumn)
	assert.Equal(t, "INV-1001", res.InvoiceNumber)
	assert.Equal(t, 5, res.TotalRows)
	assert.Equal(t, 3, res.Dropped())
	assert.Equal(t, map[DropReason]int{
		DropAmountNotNumeric:  1,
		DropAmountNotPositive: 2,
	}, res.DroppedByReason())

	require.NotNil(t, res.Rows[0].ActivityDate)
	assert.Equal(t, "2025-01-15", res.Rows[0].ActivityDate.Format("2006-01-02"))
	assert.Equal(t, "12.5", res.Rows[0].Rate.String())
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	in := table(chargeRow(" PO1 ", "DOC1", " 10 "))
	_, err := newValidator().Validate(in)
	require.NoError(t, err)

	assert.Equal(t, " PO1 ", in.Rows[0]["Header Reference 2"])
	assert.Equal(t, " 10 ", in.Rows[0]["Charge Amount"])
}

func TestValidateRejectsWrongTenant(t *testing.T) {
	row := chargeRow("PO1", "DOC1", "10")
	row["Client"] = "XX01"

	vErr := requireValidationError(t, func() error {
		_, err := newValidator().Validate(table(row))
		return err
	}())
	assert.Equal(t, RuleTenant, vErr.Rule)
	assert.Contains(t, vErr.Error(), "XX01")
}

func TestValidateOnlyFirstRowTenantIsChecked(t *testing.T) {
	second := chargeRow("PO1", "DOC2", "5")
	second["Client"] = "OTHER"

	res, err := newValidator().Validate(table(chargeRow("PO1", "DOC1", "10"), second))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestValidateMissingTenantColumn(t *testing.T) {
	tbl := &types.Table{Headers: []string{"Billing Ref"}, Rows: []map[string]string{{"Billing Ref": "D"}}}

	_, err := newValidator().Validate(tbl)
	vErr := requireValidationError(t, err)
	assert.Equal(t, RuleTenant, vErr.Rule)
}

func TestValidateOuterAliasFallback(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"second alias", "Header User 2"},
		{"third alias", "Header ref"},
		{"case and spacing differ", "  HEADER   REF "},
		{"no spaces", "HeaderReference2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := chargeRow("", "DOC1", "10")
			delete(row, "Header Reference 2")
			row[tt.header] = "PO9"

			headers := []string{tt.header}
			for _, h := range standardHeaders {
				if h != "Header Reference 2" {
					headers = append(headers, h)
				}
			}

			res, err := newValidator().Validate(&types.Table{Headers: headers, Rows: []map[string]string{row}})
			require.NoError(t, err)
			assert.Equal(t, tt.header, res.OuterColumn)
			assert.Equal(t, "PO9", res.Rows[0].OuterKey)
		})
	}
}

func TestValidateAliasPriority(t *testing.T) {
	row := chargeRow("PO-PRIMARY", "DOC1", "10")
	row["Header ref"] = "PO-LEGACY"
	headers := append([]string{"Header ref"}, standardHeaders...)

	res, err := newValidator().Validate(&types.Table{Headers: headers, Rows: []map[string]string{row}})
	require.NoError(t, err)
	assert.Equal(t, "Header Reference 2", res.OuterColumn)
	assert.Equal(t, "PO-PRIMARY", res.Rows[0].OuterKey)
}

func TestValidateMissingOuterAliasesListsColumns(t *testing.T) {
	tbl := &types.Table{
		Headers: []string{"Client", "Billing Ref", "Charge Amount"},
		Rows:    []map[string]string{{"Client": "HE01", "Billing Ref": "D", "Charge Amount": "1"}},
	}

	_, err := newValidator().Validate(tbl)
	vErr := requireValidationError(t, err)
	assert.Equal(t, RuleMissingColumn, vErr.Rule)
	assert.Equal(t, []string{"Client", "Billing Ref", "Charge Amount"}, vErr.Available)
	assert.Contains(t, vErr.Error(), "available columns: Client, Billing Ref, Charge Amount")
	assert.Contains(t, vErr.Error(), `"Header Reference 2"`)
}

func TestValidateMissingDocumentColumn(t *testing.T) {
	var headers []string
	for _, h := range standardHeaders {
		if h != "Billing Ref" {
			headers = append(headers, h)
		}
	}

	_, err := newValidator().Validate(&types.Table{Headers: headers, Rows: []map[string]string{chargeRow("PO1", "", "1")}})
	vErr := requireValidationError(t, err)
	assert.Equal(t, RuleMissingColumn, vErr.Rule)
	assert.Equal(t, "Billing Ref", vErr.Field)
}

func TestValidateEmptyCleanSet(t *testing.T) {
	_, err := newValidator().Validate(table(chargeRow("PO1", "D", "0"), chargeRow("PO1", "D", "")))
	vErr := requireValidationError(t, err)
	assert.Equal(t, RuleEmpty, vErr.Rule)
}

func TestValidateNoDataRows(t *testing.T) {
	_, err := newValidator().Validate(table())
	vErr := requireValidationError(t, err)
	assert.Equal(t, RuleEmpty, vErr.Rule)
}

func TestValidateDropsBadQuantityAndRate(t *testing.T) {
	badQty := chargeRow("PO1", "D1", "10")
	badQty["Charge Qty"] = "two"
	badRate := chargeRow("PO1", "D2", "10")
	badRate["Rate"] = "n/a"
	blankQty := chargeRow("PO1", "D3", "10")
	blankQty["Charge Qty"] = ""

	res, err := newValidator().Validate(table(badQty, badRate, blankQty))
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.True(t, res.Rows[0].Quantity.IsZero())
	assert.Equal(t, map[DropReason]int{DropQuantityNotNumeric: 1, DropRateNotNumeric: 1}, res.DroppedByReason())
}

func TestValidateInvoiceNumberFallback(t *testing.T) {
	row := chargeRow("PO1", "D", "10")
	row["Invoice"] = ""
	res, err := newValidator().Validate(table(row))
	require.NoError(t, err)
	assert.Equal(t, "N/A", res.InvoiceNumber)
}

func TestValidateInvoiceNumberFromFirstValidRow(t *testing.T) {
	dropped := chargeRow("PO1", "D", "0")
	dropped["Invoice"] = "INV-DROPPED"
	kept := chargeRow("PO1", "D", "1")
	kept["Invoice"] = "INV-KEPT"

	res, err := newValidator().Validate(table(dropped, kept))
	require.NoError(t, err)
	assert.Equal(t, "INV-KEPT", res.InvoiceNumber)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-07", "2025-03-07"},
		{"03/07/2025", "2025-03-07"},
		{"3/7/2025", "2025-03-07"},
		{"2025-03-07 14:30:00", "2025-03-07"},
		{"45723", "2025-03-07"},
		{"07-Mar-2025", "2025-03-07"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDate(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("not a date"))
	assert.Nil(t, ParseDate("-4"))
}

func TestValidateDates(t *testing.T) {
	inv := time.Date(2025, 1, 31, 15, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateDates(inv, inv))
	assert.NoError(t, ValidateDates(inv, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, ValidateDates(inv, inv.AddDate(0, 0, 30)))

	vErr := requireValidationError(t, ValidateDates(inv, inv.AddDate(0, 0, -1)))
	assert.Equal(t, RuleDateOrder, vErr.Rule)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "headerreference2", NormalizeName(" Header\tReference 2 "))
}

func TestDropReasonDescription(t *testing.T) {
	assert.Equal(t, "amount must be greater than zero", DropAmountNotPositive.Description())
	assert.Equal(t, "rate is not a number", DropRateNotNumeric.Description())
	assert.Equal(t, "something_else", DropReason("something_else").Description())
}
