package fund

import (
	"regexp"
	"strings"

	"github.com/seenimoa/navcompare/pkg/models"
)

// IdentityKey is the dedup key of a record: its ISIN when present, otherwise
// "schemeCode:schemeName".
func IdentityKey(r models.RawSchemeRecord) string {
	if isin := r.ISIN(); isin != "" {
		return isin
	}
	return r.SchemeCode + ":" + r.SchemeName
}

// Dedupe keeps the first record for each identity key, preserving order.
func Dedupe(records []models.RawSchemeRecord) []models.RawSchemeRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.RawSchemeRecord, 0, len(records))
	for _, r := range records {
		key := IdentityKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Project maps a raw record to its public shape. A missing AMC column is
// filled from the scheme name when it can be inferred.
func Project(r models.RawSchemeRecord) models.IndexFundRecord {
	rec := models.IndexFundRecord{
		SchemeCode: r.SchemeCode,
		SchemeName: r.SchemeName,
		NAV:        r.NAV,
		Date:       r.NAVDate,
	}
	if isin := r.ISIN(); isin != "" {
		rec.ISIN = &isin
	}
	amc := r.AMC
	if amc == "" {
		amc = InferAMC(r.SchemeName)
	}
	if amc != "" {
		rec.AMC = &amc
	}
	return rec
}

// IndexFunds filters records to index-like schemes, deduplicates them and
// projects the survivors.
func IndexFunds(records []models.RawSchemeRecord) []models.IndexFundRecord {
	filtered := make([]models.RawSchemeRecord, 0, len(records)/4)
	for _, r := range records {
		if IsIndexLike(r.SchemeName) {
			filtered = append(filtered, r)
		}
	}

	deduped := Dedupe(filtered)
	out := make([]models.IndexFundRecord, len(deduped))
	for i, r := range deduped {
		out[i] = Project(r)
	}
	return out
}

var amcPrefixRe = regexp.MustCompile(`(?i)^([A-Z\s&]+(?:MUTUAL FUND|MF|ASSET MANAGEMENT))`)

// InferAMC guesses the fund house from the leading words of a scheme name:
// a "... Mutual Fund" / "... MF" / "... Asset Management" prefix if there is
// one, otherwise the first two words.
func InferAMC(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if m := amcPrefixRe.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1])
	}
	words := strings.Fields(name)
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
