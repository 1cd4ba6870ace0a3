package models

// CalculatedMetrics is a derived snapshot of one fund at its latest NAV date.
// Nil pointers mean "not computable from the available history", which is
// distinct from a computed zero.
type CalculatedMetrics struct {
	FundID             string   `json:"fund_id"`
	FundName           string   `json:"fund_name"`
	TotalReturn1Y      float64  `json:"total_return_1y"`
	TotalReturn3Y      *float64 `json:"total_return_3y"`
	TotalReturn5Y      *float64 `json:"total_return_5y"`
	AnnualizedReturn1Y float64  `json:"annualized_return_1y"`
	AnnualizedReturn3Y *float64 `json:"annualized_return_3y"`
	AnnualizedReturn5Y *float64 `json:"annualized_return_5y"`
	Volatility1Y       float64  `json:"volatility_1y"`
	MaxDrawdown1Y      float64  `json:"max_drawdown_1y"`
	SharpeRatio1Y      *float64 `json:"sharpe_ratio_1y"`
	CurrentNAV         float64  `json:"current_nav"`
	LatestDate         string   `json:"latest_date"`
}

// Timeframe selects the comparison window.
type Timeframe string

const (
	Timeframe1Y     Timeframe = "1Y"
	Timeframe3Y     Timeframe = "3Y"
	Timeframe5Y     Timeframe = "5Y"
	TimeframeCustom Timeframe = "custom"
)

// ChartPoint is one common date of two aligned series, rebased to 100 at the
// first common point.
type ChartPoint struct {
	Date        string  `json:"date"`
	NAVA        float64 `json:"nav_a"`
	NAVB        float64 `json:"nav_b"`
	NormalizedA float64 `json:"normalized_nav_a"`
	NormalizedB float64 `json:"normalized_nav_b"`
}

// ComparedFund is one side of a pairwise comparison.
type ComparedFund struct {
	ISIN    string            `json:"isin"`
	Name    string            `json:"name"`
	Points  int               `json:"points"`
	Fresh   bool              `json:"fresh"` // enough recent data to trust long-window figures
	Metrics CalculatedMetrics `json:"metrics"`
}

// Comparison is the result of comparing two funds over a timeframe.
type Comparison struct {
	Timeframe Timeframe    `json:"timeframe"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	FundA     ComparedFund `json:"fund_a"`
	FundB     ComparedFund `json:"fund_b"`
	Chart     []ChartPoint `json:"chart"`
}
