// Package money provides exact currency arithmetic and calendar-date helpers
// shared by the ledger, metrics and reporting packages.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for currency amounts.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Sum adds the given amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// SafeDiv returns Round2(a / b), or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return Round2(a.Div(b))
}

// Percent returns Round2(100 * part / whole), or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round2(hundred.Mul(part).Div(whole))
}

// PercentOfCounts is Percent for integer counts.
func PercentOfCounts(part, whole int) decimal.Decimal {
	return Percent(decimal.NewFromInt(int64(part)), decimal.NewFromInt(int64(whole)))
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Format renders an amount in Brazilian real notation, e.g. "R$ 1.234,56".
func Format(d decimal.Decimal) string {
	fixed := Round2(d).StringFixed(Places)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	return sign + "R$ " + grouped.String() + "," + frac
}

// Parse reads a decimal amount, accepting a comma as decimal separator.
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(normalizeAmount(s))
}

func normalizeAmount(s string) string {
	out := make([]rune, 0, len(s))
	lastComma, lastDot := -1, -1
	for i, r := range s {
		switch r {
		case ',':
			lastComma = i
		case '.':
			lastDot = i
		}
	}
	// "1.234,56" and "1234,56" use comma decimals; "1,234.56" uses dot decimals
	commaDecimal := lastComma > lastDot
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-':
			out = append(out, r)
		case r == ',' && commaDecimal:
			out = append(out, '.')
		case r == '.' && !commaDecimal:
			out = append(out, '.')
		}
	}
	return string(out)
}
