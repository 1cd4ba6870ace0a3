// Package utils provides common utility functions for navcompare.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNAV formats a per-unit NAV with four decimals, as AMFI publishes it.
// e.g., 1234.5678 → "₹1,234.5678"
func FormatNAV(nav float64) string {
	return formatRupees(nav, 4)
}

// formatRupees renders amount in the Indian numbering system (last 3 digits,
// then groups of 2) with the given number of decimals.
func formatRupees(amount float64, decimals int) string {
	prefix := "₹"
	if amount < 0 {
		prefix = "-₹"
	}
	amount = math.Abs(amount)

	s := fmt.Sprintf("%.*f", decimals, amount)
	intStr, decStr, _ := strings.Cut(s, ".")

	n, err := strconv.ParseInt(intStr, 10, 64)
	if err != nil {
		// beyond int64: leave the digits ungrouped
		return prefix + s
	}
	formatted := formatIndianNumber(n)
	if decStr != "" {
		formatted += "." + decStr
	}
	return prefix + formatted
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatOptionalPct formats a nullable percentage, rendering nil as "n/a".
func FormatOptionalPct(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return FormatPct(*pct)
}

// FormatOptionalRatio formats a nullable ratio with two decimals.
func FormatOptionalRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// formatIndianNumber formats an integer with Indian grouping (last 3, then 2s).
func formatIndianNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	length := len(s)

	// Take the last 3 digits
	result := s[length-3:]
	remaining := s[:length-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}

	return result
}
