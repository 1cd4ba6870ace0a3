package datasource

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// Layout names the column order of a bulk NAV payload.
type Layout string

const (
	// LayoutExtended is code;name;isinGrowth;isinReinvest;nav;date[;rta;rtaCode;amc].
	LayoutExtended Layout = "extended"
	// LayoutAMFI is the order published by amfiindia.com:
	// code;isinGrowth;isinReinvest;name;nav;date.
	LayoutAMFI Layout = "amfi"
)

const minFields = 6

type columns struct {
	code, name, isinG, isinR, nav, date int
}

var layoutColumns = map[Layout]columns{
	LayoutExtended: {code: 0, name: 1, isinG: 2, isinR: 3, nav: 4, date: 5},
	LayoutAMFI:     {code: 0, isinG: 1, isinR: 2, name: 3, nav: 4, date: 5},
}

// ParseResult is the outcome of parsing one bulk payload.
type ParseResult struct {
	Records []models.RawSchemeRecord
	Layout  Layout
	Header  bool // a header line was found
	Skipped int  // data lines dropped as malformed
}

// ParseNAVAll decodes a semicolon-delimited AMFI payload into records in file
// order. Malformed lines are skipped and counted; parsing never fails.
func ParseNAVAll(payload string) *ParseResult {
	lines := splitLines(payload)

	res := &ParseResult{Layout: LayoutExtended}
	start := 0
	for i, line := range lines {
		if isHeader(line) {
			res.Header = true
			res.Layout = detectLayout(line)
			start = i + 1
			break
		}
	}

	cols := layoutColumns[res.Layout]
	for _, line := range lines[start:] {
		if rec, ok := parseLine(line, cols); ok {
			res.Records = append(res.Records, rec)
		} else {
			res.Skipped++
		}
	}
	return res
}

// splitLines splits on any line break and drops blank lines.
func splitLines(payload string) []string {
	raw := strings.FieldsFunc(payload, func(r rune) bool { return r == '\n' || r == '\r' })
	out := raw[:0]
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// isHeader matches the column header anywhere in the line, so a UTF-8 BOM or
// stray leading bytes from the publisher do not hide it.
func isHeader(line string) bool {
	l := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "\ufeff")))
	return strings.Contains(l, "scheme code;")
}

func detectLayout(header string) Layout {
	parts := strings.Split(header, ";")
	if len(parts) > 1 && strings.Contains(strings.ToUpper(parts[1]), "ISIN") {
		return LayoutAMFI
	}
	return LayoutExtended
}

// parseLine decodes one data line. It reports false for any line that is not
// a usable scheme record.
func parseLine(line string, cols columns) (models.RawSchemeRecord, bool) {
	fields := strings.Split(line, ";")
	if len(fields) < minFields {
		return models.RawSchemeRecord{}, false
	}

	nav, ok := parseNAV(field(fields, cols.nav))
	if !ok {
		return models.RawSchemeRecord{}, false
	}

	name := field(fields, cols.name)
	if name == "" || utils.LooksLikeISIN(name) {
		return models.RawSchemeRecord{}, false
	}

	return models.RawSchemeRecord{
		SchemeCode:       field(fields, cols.code),
		SchemeName:       name,
		ISINGrowth:       cleanISIN(field(fields, cols.isinG)),
		ISINReinvestment: cleanISIN(field(fields, cols.isinR)),
		NAV:              nav,
		NAVDate:          field(fields, cols.date),
		RTA:              field(fields, 6),
		RTACode:          field(fields, 7),
		AMC:              field(fields, 8),
	}, true
}

// field returns the trimmed i-th field, or "" when the line is shorter.
func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// cleanISIN maps the feed's placeholder values to empty.
func cleanISIN(s string) string {
	switch s {
	case "-", "--", "N.A.", "NA":
		return ""
	}
	return s
}

// parseNAV accepts plain decimals only; "N.A.", empty, NaN and Inf are rejected.
func parseNAV(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
