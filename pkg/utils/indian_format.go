// Package utils provides ticker handling, Indian number formatting and IST time helpers.
package utils

import (
	"fmt"
	"math"
	"strings"

	"github.com/guregu/null/v6"
)

// NA is the display string for a value that is missing or could not be computed.
const NA = "N/A"

// FormatINR formats a number in Indian Rupee format (₹12,34,567.89).
// Uses the Indian numbering system: last 3 digits, then groups of 2.
func FormatINR(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	s := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(s, '.')
	formatted := groupIndian(s[:dot]) + s[dot:]

	if negative {
		return "-₹" + formatted
	}
	return "₹" + formatted
}

// FormatINRCompact formats a rupee amount in lakh/crore notation,
// e.g. 1927345 → "₹19.27 L", 192734500000 → "₹19273.45 Cr".
func FormatINRCompact(amount float64) string {
	prefix := "₹"
	if amount < 0 {
		prefix = "-₹"
		amount = -amount
	}

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%s L Cr", prefix, trimDecimals(amount/1e12))
	case amount >= 1e7:
		return fmt.Sprintf("%s%s Cr", prefix, trimDecimals(amount/1e7))
	case amount >= 1e5:
		return fmt.Sprintf("%s%s L", prefix, trimDecimals(amount/1e5))
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatPct formats a percentage with an explicit sign, e.g. 2.45 → "+2.45%".
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatVolume formats a share count in Indian units, e.g. 1500000 → "15.00 L".
func FormatVolume(volume float64) string {
	switch {
	case volume >= 1e7:
		return fmt.Sprintf("%.2f Cr", volume/1e7)
	case volume >= 1e5:
		return fmt.Sprintf("%.2f L", volume/1e5)
	case volume >= 1e3:
		return fmt.Sprintf("%.2f K", volume/1e3)
	default:
		return fmt.Sprintf("%.0f", volume)
	}
}

// FormatLakhs renders a raw count in lakhs with an "L" suffix, e.g. 1250000 → "12.50L".
func FormatLakhs(n float64) string {
	return fmt.Sprintf("%.2fL", n/1e5)
}

// ── Optional values ──
//
// These are the only place where a missing number turns into the "N/A" string.

// Valid reports whether f holds a finite number.
func Valid(f null.Float) bool {
	return f.Valid && !math.IsNaN(f.Float64) && !math.IsInf(f.Float64, 0)
}

// Finite wraps v as a valid null.Float unless it is NaN or infinite.
func Finite(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// Positive wraps v as valid only when it is strictly positive.
// Upstream feeds report absent prices and ratios as 0.
func Positive(v float64) null.Float {
	if v <= 0 {
		return null.Float{}
	}
	return Finite(v)
}

// FmtNum formats f with the given number of decimals or returns "N/A".
func FmtNum(f null.Float, decimals int) string {
	if !Valid(f) {
		return NA
	}
	return fmt.Sprintf("%.*f", decimals, f.Float64)
}

// FmtRupee formats f as "₹1234.56" or returns "N/A".
func FmtRupee(f null.Float) string {
	if !Valid(f) {
		return NA
	}
	return fmt.Sprintf("₹%.2f", f.Float64)
}

// FmtPercent formats f as "12.34%" or returns "N/A".
func FmtPercent(f null.Float) string {
	if !Valid(f) {
		return NA
	}
	return fmt.Sprintf("%.2f%%", f.Float64)
}

// FmtSignedPercent formats f as "+12.34%" or returns "N/A".
func FmtSignedPercent(f null.Float) string {
	if !Valid(f) {
		return NA
	}
	return FormatPct(f.Float64)
}

// FmtCompactRupee formats f with FormatINRCompact or returns "N/A".
func FmtCompactRupee(f null.Float) string {
	if !Valid(f) {
		return NA
	}
	return FormatINRCompact(f.Float64)
}

// FmtVolume formats f with FormatVolume or returns "N/A".
func FmtVolume(f null.Float) string {
	if !Valid(f) {
		return NA
	}
	return FormatVolume(f.Float64)
}

// FmtRange formats a low/high pair as "₹low - ₹high" or returns "N/A"
// if either side is missing.
func FmtRange(low, high null.Float) string {
	if !Valid(low) || !Valid(high) {
		return NA
	}
	return FmtRupee(low) + " - " + FmtRupee(high)
}

// FmtChange formats an absolute and percent change as "+₹12.34 (+1.23%)".
func FmtChange(change, pct null.Float) string {
	if !Valid(change) || !Valid(pct) {
		return NA
	}
	sign := "+"
	if change.Float64 < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s₹%.2f (%s)", sign, math.Abs(change.Float64), FormatPct(pct.Float64))
}

// OrNA returns s, or "N/A" when s is blank.
func OrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}

// groupIndian inserts Indian-style separators into a run of digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	result := digits[len(digits)-3:]
	rest := digits[:len(digits)-3]
	for len(rest) > 2 {
		result = rest[len(rest)-2:] + "," + result
		rest = rest[:len(rest)-2]
	}
	if rest != "" {
		result = rest + "," + result
	}
	return result
}

// trimDecimals formats with up to 2 decimals, dropping trailing zeros.
func trimDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
