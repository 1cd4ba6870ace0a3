package fund

import (
	"regexp"
	"strings"

	"github.com/seenimoa/navcompare/pkg/models"
)

// rule maps a predicate over the upper-cased scheme name to a label.
// Rules are evaluated in order; the first match wins.
type rule[T any] struct {
	match func(upper string) bool
	label T
}

func contains(subs ...string) func(string) bool {
	return func(upper string) bool {
		for _, s := range subs {
			if strings.Contains(upper, s) {
				return true
			}
		}
		return false
	}
}

// word matches a whole word, for tokens too short to match as substrings.
func word(w string) func(string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	return re.MatchString
}

const UnknownFundHouse = "Unknown"

var fundHouseRules = []rule[string]{
	{contains("ICICI"), "ICICI Prudential Mutual Fund"},
	{contains("SBI"), "SBI Mutual Fund"},
	{contains("AXIS"), "Axis Mutual Fund"},
	{contains("HDFC"), "HDFC Mutual Fund"},
	{contains("UTI"), "UTI Mutual Fund"},
	{contains("D S P", "DSP"), "DSP Mutual Fund"},
	{contains("NIPPON"), "Nippon India Mutual Fund"},
	{contains("BANDHAN"), "Bandhan Mutual Fund"},
	{contains("MOTILAL"), "Motilal Oswal Mutual Fund"},
	{contains("KOTAK"), "Kotak Mahindra Mutual Fund"},
	{contains("TATA"), "Tata Mutual Fund"},
}

// Category is the category/benchmark labelling of a scheme.
type Category struct {
	ID             string
	Name           string
	SubCategory    string
	BenchmarkIndex string
}

var defaultCategory = Category{ID: "equity", Name: "Equity", SubCategory: "Index/ETF", BenchmarkIndex: "NIFTY 50"}

var categoryRules = []rule[Category]{
	{contains("NEXT 50"), Category{"large-cap", "Large Cap", "Index Fund", "NIFTY NEXT 50"}},
	{contains("NIFTY 50", "NIFTY INDEX"), Category{"large-cap", "Large Cap", "Index Fund", "NIFTY 50"}},
	{contains("SENSEX"), Category{"large-cap", "Large Cap", "Index Fund", "S&P BSE Sensex"}},
	{contains("MIDCAP 150"), Category{"mid-cap", "Mid Cap", "Index Fund", "NIFTY MIDCAP 150"}},
	{contains("SMALLCAP 250"), Category{"small-cap", "Small Cap", "Index Fund", "NIFTY SMALLCAP 250"}},
	{contains("BANK"), Category{"banking", "Banking & Financial", "Index Fund", "NIFTY BANK"}},
	{word("IT"), Category{"technology", "Technology", "Index Fund", "NIFTY IT"}},
	{contains("PHARMA"), Category{"pharma", "Pharmaceutical", "Index Fund", "NIFTY PHARMA"}},
}

var riskByCategory = map[string]string{
	"small-cap":  "Very High",
	"mid-cap":    "High",
	"pharma":     "High",
	"large-cap":  "Moderate",
	"banking":    "Moderate",
	"technology": "Moderate",
}

func firstMatch[T any](rules []rule[T], name string, fallback T) T {
	upper := strings.ToUpper(name)
	for _, r := range rules {
		if r.match(upper) {
			return r.label
		}
	}
	return fallback
}

// FundHouse guesses the fund house from a scheme name.
func FundHouse(name string) string {
	return firstMatch(fundHouseRules, name, UnknownFundHouse)
}

// Categorize guesses category and benchmark from a scheme name.
func Categorize(name string) Category {
	return firstMatch(categoryRules, name, defaultCategory)
}

// RiskRating maps a category id to a coarse risk label.
func RiskRating(categoryID string) string {
	if r, ok := riskByCategory[categoryID]; ok {
		return r
	}
	return "Moderate"
}

// Plan returns "Direct", "Regular" or "".
func Plan(name string) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "DIRECT"):
		return "Direct"
	case strings.Contains(upper, "REGULAR"):
		return "Regular"
	}
	return ""
}

// Option returns "Growth", "IDCW" or "".
func Option(name string) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "GROWTH"):
		return "Growth"
	case strings.Contains(upper, "IDCW"), strings.Contains(upper, "DIVIDEND"):
		return "IDCW"
	}
	return ""
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug builds a stable URL-safe id from the ISIN, or from code and name.
func Slug(r models.IndexFundRecord) string {
	base := r.SchemeCode + "-" + r.SchemeName
	if r.ISIN != nil && *r.ISIN != "" {
		base = *r.ISIN
	}
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(base), "-"), "-")
}

// Profile labels a projected record.
func Profile(r models.IndexFundRecord) models.FundProfile {
	cat := Categorize(r.SchemeName)
	p := models.FundProfile{
		ID:             Slug(r),
		SchemeCode:     r.SchemeCode,
		SchemeName:     r.SchemeName,
		FundHouse:      FundHouse(r.SchemeName),
		CategoryID:     cat.ID,
		CategoryName:   cat.Name,
		SubCategory:    cat.SubCategory,
		BenchmarkIndex: cat.BenchmarkIndex,
		Plan:           Plan(r.SchemeName),
		Option:         Option(r.SchemeName),
		RiskRating:     RiskRating(cat.ID),
		NAV:            r.NAV,
		Date:           r.Date,
	}
	if r.ISIN != nil {
		p.ISIN = *r.ISIN
	}
	return p
}

// Profiles labels every record.
func Profiles(records []models.IndexFundRecord) []models.FundProfile {
	out := make([]models.FundProfile, len(records))
	for i, r := range records {
		out[i] = Profile(r)
	}
	return out
}
