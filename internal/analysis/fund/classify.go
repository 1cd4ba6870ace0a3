// Package fund classifies, deduplicates and labels AMFI scheme records.
//
// Everything here works on free-text scheme names. The results are
// best-effort hints for display and filtering, not authoritative metadata.
package fund

import "strings"

// indexKeywords are matched as plain substrings of the lower-cased name.
var indexKeywords = []string{"index", "nifty", "sensex", "etf", "benchmark", "nse", "bse"}

// IsIndexLike reports whether a scheme name suggests a passive index fund or
// an exchange-traded fund. Matching is deliberately broad: no word
// boundaries, so "NSE" inside a longer word also counts.
func IsIndexLike(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range indexKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
