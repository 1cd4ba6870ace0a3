package models

import "time"

// NAVDataPoint is a single dated NAV observation.
type NAVDataPoint struct {
	Date          string  `json:"date"` // ISO or DD-MMM-YYYY depending on source
	NAV           float64 `json:"nav"`
	ChangePercent float64 `json:"change_percent"` // day-over-day, 0 for the first point
}

// NAVSeries is an ascending, duplicate-free sequence of NAV points.
type NAVSeries []NAVDataPoint

// Last returns the final point of the series.
func (s NAVSeries) Last() (NAVDataPoint, bool) {
	if len(s) == 0 {
		return NAVDataPoint{}, false
	}
	return s[len(s)-1], true
}

// HistoricalPoint is one [date, nav] pair from the historical NAV API.
type HistoricalPoint struct {
	Date string  `json:"date"`
	NAV  float64 `json:"nav"`
}

// HistoricalNAV is the decoded per-fund response of the historical NAV API.
type HistoricalNAV struct {
	ISIN       string            `json:"isin"`
	Name       string            `json:"name"`
	LatestNAV  float64           `json:"latest_nav"`
	LatestDate string            `json:"latest_date"`
	Historical []HistoricalPoint `json:"historical"`
}

// FundSeries pairs a normalized series with the fund it belongs to.
type FundSeries struct {
	ISIN       string    `json:"isin"`
	Name       string    `json:"name"`
	LatestNAV  float64   `json:"latest_nav"`
	LatestDate string    `json:"latest_date"`
	Points     NAVSeries `json:"points"`
	FetchedAt  time.Time `json:"fetched_at"`
}
