package bc3

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMALS
// =============================================================================

// ParseDecimal reads a locale-formatted number. Everything except digits, a
// single leading minus and the separators is stripped. When a comma is
// present it is the decimal separator and periods are thousands grouping;
// otherwise a lone period is the decimal point and repeated periods are
// grouping.
//
// Unparsable input returns zero together with an error; the value is always
// usable.
//
// EXAMPLES:
//   "1.234,56" -> 1234.56
//   "1234,56"  -> 1234.56
//   "10.50"    -> 10.50
//   "1.000.000"-> 1000000
//   ""         -> 0, error
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}

	var b strings.Builder
	negative := false
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == ',' || r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0 && !negative:
			negative = true
		}
	}
	if digits == 0 {
		return decimal.Zero, fmt.Errorf("no digits in %q", s)
	}

	cleaned := b.String()
	if strings.Contains(cleaned, ",") {
		if strings.Count(cleaned, ",") > 1 {
			return decimal.Zero, fmt.Errorf("more than one decimal separator in %q", s)
		}
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else if strings.Count(cleaned, ".") > 1 {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	if negative {
		cleaned = "-" + cleaned
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return value, nil
}

// FormatPrice renders a price with two decimals and a decimal comma.
func FormatPrice(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatQuantity renders the shortest exact form with a decimal comma.
func FormatQuantity(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// =============================================================================
// DATES
// =============================================================================

// DateLayout is the layout written in K|3 records.
const DateLayout = "02/01/2006"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/06",
	"02012006",
	"020106",
	"2006-01-02",
	"2-1-2006",
}

// ParseDate reads a calendar date in any of the layouts BC3 exporters use.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// FormatDate renders a date as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
