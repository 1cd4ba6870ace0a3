package utils

import (
	"regexp"
	"strings"
)

var (
	// A full 12-character ISIN issued in India.
	isinShapeRe = regexp.MustCompile(`(?i)^IN[A-Z0-9]{10}$`)
	// Looser shape accepted by the historical NAV lookup.
	fundISINRe = regexp.MustCompile(`(?i)^IN[A-Z0-9]{9,12}$`)
)

// LooksLikeISIN reports whether s has the exact shape of an Indian ISIN.
// Used to catch column-shifted AMFI rows where an ISIN lands in the name field.
func LooksLikeISIN(s string) bool {
	return isinShapeRe.MatchString(strings.TrimSpace(s))
}

// ValidFundISIN reports whether s is acceptable as a historical NAV lookup key.
func ValidFundISIN(s string) bool {
	return fundISINRe.MatchString(s)
}

// NormalizeISIN trims and upper-cases an ISIN.
func NormalizeISIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
