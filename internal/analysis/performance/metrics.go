// Package performance computes return and risk statistics from NAV series
// and builds pairwise fund comparisons.
package performance

import (
	"math"
	"sort"
	"time"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// DefaultRiskFreeRate is the annual risk-free rate, in percent, used for the
// Sharpe ratio.
const DefaultRiskFreeRate = 7.0

const (
	tradingDays         = 252
	minVolatilityPoints = 30
)

// ════════════════════════════════════════════════════════════════════
// Metrics
// ════════════════════════════════════════════════════════════════════

type datedNAV struct {
	at  time.Time
	nav float64
}

// ComputeMetrics computes trailing 1y/3y/5y statistics for a NAV series.
// It never fails: insufficient data yields 0 for the 1y figures and nil for
// the 3y/5y figures and the Sharpe ratio. Points whose date cannot be parsed
// are ignored.
func ComputeMetrics(fundID, fundName string, series models.NAVSeries, riskFreeRate float64) models.CalculatedMetrics {
	m := models.CalculatedMetrics{FundID: fundID, FundName: fundName}

	pts, last := sortedPoints(series)
	if len(pts) == 0 {
		return m
	}

	end := pts[len(pts)-1]
	m.CurrentNAV = last.NAV
	m.LatestDate = last.Date

	w1 := window(pts, end.at, 1)
	w3 := window(pts, end.at, 3)
	w5 := window(pts, end.at, 5)

	if len(w1) >= 2 && w1[0].nav > 0 {
		m.TotalReturn1Y = totalReturn(w1[0].nav, end.nav)
		m.AnnualizedReturn1Y = cagr(w1[0].nav, end.nav, 1)
	}

	if len(w1) >= minVolatilityPoints {
		m.Volatility1Y = volatility(w1)
	}

	if len(w1) >= 2 {
		m.MaxDrawdown1Y = maxDrawdown(w1)
	}

	if m.Volatility1Y > 0 {
		m.SharpeRatio1Y = ptr((m.AnnualizedReturn1Y - riskFreeRate) / m.Volatility1Y)
	}

	if sufficient(w3, w1, 2) {
		m.TotalReturn3Y = ptr(totalReturn(w3[0].nav, end.nav))
		m.AnnualizedReturn3Y = ptr(cagr(w3[0].nav, end.nav, 3))
	}

	if sufficient(w5, w1, 4) {
		m.TotalReturn5Y = ptr(totalReturn(w5[0].nav, end.nav))
		m.AnnualizedReturn5Y = ptr(cagr(w5[0].nav, end.nav, 5))
	}

	return m
}

// sortedPoints parses and stably sorts the series by date. It also returns
// the original point that ends up last.
func sortedPoints(series models.NAVSeries) ([]datedNAV, models.NAVDataPoint) {
	type indexed struct {
		datedNAV
		src models.NAVDataPoint
	}

	tmp := make([]indexed, 0, len(series))
	for _, p := range series {
		at, err := utils.ParseNAVDate(p.Date)
		if err != nil {
			continue
		}
		tmp = append(tmp, indexed{datedNAV{at, p.NAV}, p})
	}
	if len(tmp) == 0 {
		return nil, models.NAVDataPoint{}
	}

	sort.SliceStable(tmp, func(i, j int) bool { return tmp[i].at.Before(tmp[j].at) })

	pts := make([]datedNAV, len(tmp))
	for i, p := range tmp {
		pts[i] = p.datedNAV
	}
	return pts, tmp[len(tmp)-1].src
}

// window returns the points dated on or after latest minus the given number
// of calendar years.
func window(pts []datedNAV, latest time.Time, years int) []datedNAV {
	cutoff := latest.AddDate(-years, 0, 0)
	i := sort.Search(len(pts), func(i int) bool { return !pts[i].at.Before(cutoff) })
	return pts[i:]
}

// sufficient applies the long-window rule: at least two points and at least
// factor times as many points as the 1y window.
func sufficient(w, w1 []datedNAV, factor int) bool {
	return len(w) >= 2 && len(w) >= factor*len(w1) && w[0].nav > 0
}

// ────────────────────────────────────────────────────────────────────
// Returns
// ────────────────────────────────────────────────────────────────────

func totalReturn(start, end float64) float64 {
	return (end - start) / start * 100
}

// cagr uses the nominal window length, not the elapsed time between points.
func cagr(start, end float64, years float64) float64 {
	return (math.Pow(end/start, 1/years) - 1) * 100
}

// ────────────────────────────────────────────────────────────────────
// Risk
// ────────────────────────────────────────────────────────────────────

// volatility is the annualized sample standard deviation of daily returns,
// in percent.
func volatility(pts []datedNAV) float64 {
	return stddev(dailyReturns(pts)) * math.Sqrt(tradingDays) * 100
}

func maxDrawdown(pts []datedNAV) float64 {
	peak := pts[0].nav
	maxDD := 0.0
	for _, p := range pts {
		if p.nav > peak {
			peak = p.nav
		}
		if peak > 0 {
			if dd := (peak - p.nav) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// dailyReturns computes simple returns between consecutive points.
func dailyReturns(pts []datedNAV) []float64 {
	if len(pts) < 2 {
		return nil
	}
	returns := make([]float64, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		if pts[i-1].nav > 0 {
			returns[i-1] = (pts[i].nav - pts[i-1].nav) / pts[i-1].nav
		}
	}
	return returns
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(data)-1)) // sample stddev
}

func ptr(v float64) *float64 { return &v }
