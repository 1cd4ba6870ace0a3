// Package models defines the core data structures used throughout navcompare.
package models

import "time"

// RawSchemeRecord is one decoded line of the AMFI bulk NAV file.
// Optional string fields are empty when the column is absent or blank.
type RawSchemeRecord struct {
	SchemeCode       string  `json:"scheme_code"`
	SchemeName       string  `json:"scheme_name"`
	ISINGrowth       string  `json:"isin_growth,omitempty"`
	ISINReinvestment string  `json:"isin_reinvestment,omitempty"`
	NAV              float64 `json:"nav"`
	NAVDate          string  `json:"nav_date"` // DD-MMM-YYYY, passed through untouched
	RTA              string  `json:"rta,omitempty"`
	RTACode          string  `json:"rta_code,omitempty"`
	AMC              string  `json:"amc,omitempty"`
}

// ISIN returns the growth ISIN, falling back to the reinvestment ISIN.
func (r RawSchemeRecord) ISIN() string {
	if r.ISINGrowth != "" {
		return r.ISINGrowth
	}
	return r.ISINReinvestment
}

// IndexFundRecord is the public projection of a deduplicated scheme.
type IndexFundRecord struct {
	SchemeCode string  `json:"schemeCode"`
	SchemeName string  `json:"schemeName"`
	ISIN       *string `json:"isin"`
	NAV        float64 `json:"nav"`
	Date       string  `json:"date"`
	AMC        *string `json:"amc"`
}

// FundProfile carries best-effort labels inferred from a scheme name.
// None of it is authoritative metadata.
type FundProfile struct {
	ID             string  `json:"id"`
	ISIN           string  `json:"isin,omitempty"`
	SchemeCode     string  `json:"scheme_code"`
	SchemeName     string  `json:"scheme_name"`
	FundHouse      string  `json:"fund_house"`
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name"`
	SubCategory    string  `json:"sub_category"`
	BenchmarkIndex string  `json:"benchmark_index"`
	Plan           string  `json:"plan"`   // "Direct", "Regular" or ""
	Option         string  `json:"option"` // "Growth", "IDCW" or ""
	RiskRating     string  `json:"risk_rating"`
	NAV            float64 `json:"nav"`
	Date           string  `json:"date"`
}

// Snapshot is the persisted form of a fetched index-fund list.
type Snapshot struct {
	ID          string            `json:"id,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Count       int               `json:"count"`
	Funds       []IndexFundRecord `json:"funds"`
	Source      string            `json:"source,omitempty"` // "amfi", "local-file", "manual-download"
}
