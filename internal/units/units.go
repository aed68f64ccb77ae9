// Package units holds currency and bottle-size conversions used for display and
// for normalising user input.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency has been chosen.
const DefaultCurrency = "EUR (€)"

// DefaultBottleSizeUnit is the storage unit and the default display unit.
const DefaultBottleSizeUnit = "ml"

// Currencies is the closed list of selectable currencies.
var Currencies = []string{
	"USD ($)", "EUR (€)", "JPY (¥)", "GBP (£)", "CNY (¥)",
	"AUD ($)", "CAD ($)", "CHF (Fr)", "HKD ($)", "SGD ($)",
	"INR (₹)", "NZD ($)", "SEK (kr)", "KRW (₩)", "NOK (kr)",
}

// BottleSizeUnits lists the supported display units.
var BottleSizeUnits = []string{"ml", "cl", "dl", "l"}

var mlPerUnit = map[string]float64{
	"ml": 1,
	"cl": 10,
	"dl": 100,
	"l":  1000,
}

// IsCurrency reports whether c is in Currencies.
func IsCurrency(c string) bool {
	for _, known := range Currencies {
		if known == c {
			return true
		}
	}
	return false
}

// IsBottleSizeUnit reports whether u is a supported unit.
func IsBottleSizeUnit(u string) bool {
	_, ok := mlPerUnit[u]
	return ok
}

// CurrencySymbol extracts the text between the parentheses, "EUR (€)" → "€".
// A value without parentheses is returned as is.
func CurrencySymbol(currency string) string {
	start := strings.IndexByte(currency, '(')
	end := strings.LastIndexByte(currency, ')')
	if start < 0 || end <= start {
		return currency
	}
	return currency[start+1 : end]
}

// ToMilliliters converts a bare number in unit to a whole-milliliter string.
// Non-numeric input is returned unchanged.
func ToMilliliters(value, unit string) string {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value
	}
	factor, ok := mlPerUnit[unit]
	if !ok || unit == "ml" {
		if !ok {
			return value
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprintf("%.0f", n*factor)
}

// FromMilliliters converts a milliliter amount to unit without trailing zeros.
func FromMilliliters(value, unit string) string {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value
	}
	factor, ok := mlPerUnit[unit]
	if !ok || unit == "ml" {
		return fmt.Sprintf("%.0f", n)
	}
	return strconv.FormatFloat(n/factor, 'f', -1, 64)
}

// ErrInvalidBottleSize is returned for bottle sizes that are not a non-negative
// number with an optional unit.
var ErrInvalidBottleSize = errors.New("invalid bottle size")

// ParseBottleSize turns user input such as "75cl", "1,5 L" or "750" into the stored
// "<n>ml" form. Units are matched case-insensitively and a decimal comma is
// accepted. Input without a unit is read in defaultUnit. Empty input stays empty.
func ParseBottleSize(size, defaultUnit string) (string, error) {
	s := strings.ToLower(strings.Join(strings.Fields(size), ""))
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(s, ",", ".")

	unit := defaultUnit
	if !IsBottleSizeUnit(unit) {
		unit = DefaultBottleSizeUnit
	}
	// "ml" must be checked before "l".
	for _, u := range []string{"ml", "cl", "dl", "l"} {
		if strings.HasSuffix(s, u) {
			s, unit = strings.TrimSuffix(s, u), u
			break
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBottleSize, strings.TrimSpace(size))
	}
	return ToMilliliters(strconv.FormatFloat(n, 'f', -1, 64), unit) + "ml", nil
}

// NormalizeBottleSize is ParseBottleSize for callers that already validated the
// input. Unparseable input is returned trimmed and unchanged.
func NormalizeBottleSize(size, defaultUnit string) string {
	out, err := ParseBottleSize(size, defaultUnit)
	if err != nil {
		return strings.TrimSpace(size)
	}
	return out
}

// DisplayBottleSize renders a stored "<n>ml" size in unit, e.g. "750ml" → "75cl".
func DisplayBottleSize(stored, unit string) string {
	if stored == "" {
		return ""
	}
	if !IsBottleSizeUnit(unit) {
		unit = DefaultBottleSizeUnit
	}
	ml := strings.TrimSuffix(strings.TrimSpace(stored), "ml")
	return FromMilliliters(ml, unit) + unit
}

// DecodeHeaderTitle turns a zero-padded sort key back into a display value: five
// digits are a bottle size, three digits a quantity. Anything else passes through.
func DecodeHeaderTitle(title, unit string) string {
	if !allDigits(title) {
		return title
	}
	switch len(title) {
	case 5:
		n, _ := strconv.Atoi(title)
		if n > 0 {
			return DisplayBottleSize(strconv.Itoa(n)+"ml", unit)
		}
	case 3:
		n, _ := strconv.Atoi(title)
		return strconv.Itoa(n)
	}
	return title
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatPrice renders "<amount> <symbol>" with two decimals. A nil price yields "".
func FormatPrice(price *decimal.Decimal, currency string) string {
	if price == nil {
		return ""
	}
	return price.StringFixed(2) + " " + CurrencySymbol(currency)
}
