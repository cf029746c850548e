// Package format holds the display helpers shared by the aggregator, the
// layout engine and the CLI summary. Values stay at full precision until they
// pass through here.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout is the month/day/year form printed on the invoice.
	DateLayout = "01/02/2006"

	// TimestampLayout is used in the "Generated on" footer.
	TimestampLayout = "01/02/2006 03:04 PM"

	// MissingDate is printed when a charge has no usable activity date.
	MissingDate = "N/A"
)

// Money renders an amount with two decimals and thousands separators,
// without a currency symbol: 1234.5 -> "1,234.50".
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	return sign + groupThousands(intPart) + "." + frac
}

// Dollars is Money with a leading "$".
func Dollars(d decimal.Decimal) string {
	m := Money(d)
	if strings.HasPrefix(m, "-") {
		return "-$" + m[1:]
	}
	return "$" + m
}

// Fixed2 renders a value with exactly two decimals and no grouping, the way
// rates and line amounts appear inside document tables.
func Fixed2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Quantity renders a quantity without trailing zeros: 3.00 -> "3", 2.50 -> "2.5".
func Quantity(d decimal.Decimal) string {
	return d.String()
}

// Date renders t as DateLayout, or MissingDate when t is nil.
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return MissingDate
	}
	return t.Format(DateLayout)
}

// ParseInputDate reads a date typed by a user: ISO "2006-01-02" or the
// printed "01/02/2006" form.
func ParseInputDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date (expected YYYY-MM-DD or MM/DD/YYYY)", s)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
