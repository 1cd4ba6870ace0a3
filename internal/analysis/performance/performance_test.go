package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, utils.IST)
	if err != nil {
		panic(err)
	}
	return t
}

// dailySeries builds n consecutive calendar-day points starting at start.
func dailySeries(start string, n int, nav func(i int) float64) models.NAVSeries {
	s := make(models.NAVSeries, n)
	t := day(start)
	for i := 0; i < n; i++ {
		s[i] = models.NAVDataPoint{Date: t.AddDate(0, 0, i).Format("2006-01-02"), NAV: nav(i)}
	}
	return s
}

func pts(pairs ...any) models.NAVSeries {
	s := make(models.NAVSeries, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, models.NAVDataPoint{Date: pairs[i].(string), NAV: pairs[i+1].(float64)})
	}
	return s
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics("id", "name", nil, DefaultRiskFreeRate)
	assert.Equal(t, "id", m.FundID)
	assert.Equal(t, "name", m.FundName)
	assert.Zero(t, m.CurrentNAV)
	assert.Zero(t, m.TotalReturn1Y)
	assert.Zero(t, m.AnnualizedReturn1Y)
	assert.Nil(t, m.TotalReturn3Y)
	assert.Nil(t, m.AnnualizedReturn3Y)
	assert.Nil(t, m.TotalReturn5Y)
	assert.Nil(t, m.SharpeRatio1Y)
	assert.Zero(t, m.Volatility1Y)
	assert.Zero(t, m.MaxDrawdown1Y)
	assert.Empty(t, m.LatestDate)
}

func TestComputeMetricsSinglePoint(t *testing.T) {
	m := ComputeMetrics("id", "name", pts("2026-01-01", 42.0), DefaultRiskFreeRate)
	assert.Equal(t, 42.0, m.CurrentNAV)
	assert.Equal(t, "2026-01-01", m.LatestDate)
	assert.Zero(t, m.TotalReturn1Y)
	assert.Zero(t, m.MaxDrawdown1Y)
	assert.Nil(t, m.TotalReturn3Y)
}

func TestComputeMetricsOneYearDoubling(t *testing.T) {
	m := ComputeMetrics("id", "name", pts("2025-01-01", 100.0, "2026-01-01", 200.0), DefaultRiskFreeRate)
	assert.InDelta(t, 100.0, m.TotalReturn1Y, 1e-9)
	assert.InDelta(t, 100.0, m.AnnualizedReturn1Y, 1e-9)
	assert.Nil(t, m.TotalReturn3Y, "2 points are not 2x the 1y window")
	assert.Equal(t, 200.0, m.CurrentNAV)
	assert.Equal(t, "2026-01-01", m.LatestDate)
}

func TestComputeMetricsFourteenMonthsGatesLongWindows(t *testing.T) {
	series := dailySeries("2025-08-01", 427, func(i int) float64 { return 100 + float64(i)*0.05 })
	m := ComputeMetrics("id", "name", series, DefaultRiskFreeRate)

	assert.NotZero(t, m.TotalReturn1Y)
	assert.Nil(t, m.TotalReturn3Y)
	assert.Nil(t, m.AnnualizedReturn3Y)
	assert.Nil(t, m.TotalReturn5Y)
	assert.Nil(t, m.AnnualizedReturn5Y)
}

func TestComputeMetricsThreeYearWindow(t *testing.T) {
	// 2023-10-01 .. 2026-10-01 inclusive, 2024 is a leap year.
	series := dailySeries("2023-10-01", 1097, func(i int) float64 { return 100 + float64(i)*0.1 })
	m := ComputeMetrics("id", "name", series, DefaultRiskFreeRate)

	end := 100 + 1096*0.1
	require.NotNil(t, m.TotalReturn3Y)
	assert.InDelta(t, end-100, *m.TotalReturn3Y, 1e-9)
	require.NotNil(t, m.AnnualizedReturn3Y)
	assert.InDelta(t, (math.Pow(end/100, 1.0/3)-1)*100, *m.AnnualizedReturn3Y, 1e-9)
	assert.Nil(t, m.TotalReturn5Y, "3 years of data is not 4x the 1y window")
}

func TestComputeMetricsLeapDayWindow(t *testing.T) {
	// One year before 2024-02-29 normalizes to 2023-03-01.
	m := ComputeMetrics("id", "name", pts(
		"2023-02-28", 50.0,
		"2023-03-01", 100.0,
		"2024-02-29", 110.0,
	), DefaultRiskFreeRate)
	assert.InDelta(t, 10.0, m.TotalReturn1Y, 1e-9)
}

func TestComputeMetricsMaxDrawdown(t *testing.T) {
	m := ComputeMetrics("id", "name", pts(
		"2026-01-01", 100.0,
		"2026-02-01", 120.0,
		"2026-03-01", 80.0,
		"2026-04-01", 110.0,
	), DefaultRiskFreeRate)
	assert.InDelta(t, 33.33, m.MaxDrawdown1Y, 0.01)
	assert.GreaterOrEqual(t, m.MaxDrawdown1Y, 0.0)
}

func TestComputeMetricsVolatilityFloor(t *testing.T) {
	series := dailySeries("2026-01-01", 10, func(i int) float64 { return 100 + float64(i%2)*20 })
	m := ComputeMetrics("id", "name", series, DefaultRiskFreeRate)
	assert.Zero(t, m.Volatility1Y)
	assert.Nil(t, m.SharpeRatio1Y)
}

func TestComputeMetricsVolatilityAndSharpe(t *testing.T) {
	series := dailySeries("2026-01-01", 31, func(i int) float64 { return 100 + float64(i%2) })
	m := ComputeMetrics("id", "name", series, DefaultRiskFreeRate)

	var rets []float64
	for i := 1; i < len(series); i++ {
		rets = append(rets, (series[i].NAV-series[i-1].NAV)/series[i-1].NAV)
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	avg := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		sq += (r - avg) * (r - avg)
	}
	want := math.Sqrt(sq/float64(len(rets)-1)) * math.Sqrt(252) * 100

	assert.InDelta(t, want, m.Volatility1Y, 1e-9)
	require.NotNil(t, m.SharpeRatio1Y)
	assert.InDelta(t, (m.AnnualizedReturn1Y-DefaultRiskFreeRate)/m.Volatility1Y, *m.SharpeRatio1Y, 1e-9)
}

func TestComputeMetricsConstantGrowthHasNoVolatility(t *testing.T) {
	series := dailySeries("2026-01-01", 40, func(i int) float64 { return 100 * math.Pow(1.001, float64(i)) })
	m := ComputeMetrics("id", "name", series, DefaultRiskFreeRate)
	assert.InDelta(t, 0, m.Volatility1Y, 1e-9)
}

func TestComputeMetricsSortsInput(t *testing.T) {
	sorted := pts("2026-01-01", 100.0, "2026-02-01", 120.0, "2026-03-01", 80.0)
	shuffled := pts("2026-03-01", 80.0, "2026-01-01", 100.0, "2026-02-01", 120.0)

	a := ComputeMetrics("id", "name", sorted, DefaultRiskFreeRate)
	b := ComputeMetrics("id", "name", shuffled, DefaultRiskFreeRate)
	assert.Equal(t, a, b)
	assert.Equal(t, 80.0, b.CurrentNAV)
	assert.Equal(t, "2026-03-01", b.LatestDate)
}

func TestComputeMetricsMixedDateFormats(t *testing.T) {
	m := ComputeMetrics("id", "name", pts("01-Jan-2026", 100.0, "2026-01-02", 110.0, "garbage", 1.0), DefaultRiskFreeRate)
	assert.InDelta(t, 10.0, m.TotalReturn1Y, 1e-9)
	assert.Equal(t, "2026-01-02", m.LatestDate)
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, utils.IST)
	f := DefaultFreshness()

	stale := dailySeries("2026-08-06", 60, func(int) float64 { return 10 }) // ends 2026-10-04
	assert.False(t, f.IsFresh(stale, now), "60 points but 10 days old")

	short := dailySeries("2026-09-05", 40, func(int) float64 { return 10 }) // ends today
	assert.False(t, f.IsFresh(short, now), "recent but only 40 points")

	good := dailySeries("2026-08-13", 60, func(int) float64 { return 10 }) // ends 2026-10-11
	assert.True(t, f.IsFresh(good, now))

	assert.False(t, IsDataFreshAt(nil, now))
	assert.True(t, IsDataFreshAt(good, now))
}

func TestTimeframeWindow(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, utils.IST)

	tests := []struct {
		tf   models.Timeframe
		from string
	}{
		{models.Timeframe1Y, "2025-10-01"},
		{models.Timeframe3Y, "2023-10-01"},
		{models.Timeframe5Y, "2021-10-01"},
	}
	for _, tt := range tests {
		w, err := TimeframeWindow(tt.tf, now, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, tt.from, utils.FormatDateIST(w.From), string(tt.tf))
		assert.Equal(t, now, w.To)
	}

	w, err := TimeframeWindow(models.TimeframeCustom, now, day("2026-01-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, w.Contains(day("2026-03-31").Add(12*time.Hour)))
	assert.False(t, w.Contains(day("2026-04-01")))

	_, err = TimeframeWindow(models.TimeframeCustom, now, day("2026-03-01"), day("2026-01-01"))
	assert.ErrorIs(t, err, ErrInvalidTimeframe)

	_, err = TimeframeWindow("2Y", now, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]models.Timeframe{
		"1Y": models.Timeframe1Y, "3y": models.Timeframe3Y, " 5Y ": models.Timeframe5Y, "Custom": models.TimeframeCustom,
	} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseTimeframe("10Y")
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestAlignSeries(t *testing.T) {
	a := pts("2026-01-01", 10.0, "2026-01-02", 11.0, "2026-01-03", 12.0, "2026-01-05", 13.0)
	b := pts("02-Jan-2026", 50.0, "03-Jan-2026", 55.0, "04-Jan-2026", 60.0, "05-Jan-2026", 40.0)
	w := Window{From: day("2026-01-02"), To: day("2026-01-04")}

	chart := AlignSeries(a, b, w)
	require.Len(t, chart, 2)
	assert.Equal(t, "2026-01-02", chart[0].Date)
	assert.Equal(t, 100.0, chart[0].NormalizedA)
	assert.Equal(t, 100.0, chart[0].NormalizedB)
	assert.Equal(t, 55.0, chart[1].NAVB)
	assert.InDelta(t, 12.0/11.0*100, chart[1].NormalizedA, 1e-9)
	assert.InDelta(t, 110.0, chart[1].NormalizedB, 1e-9)

	assert.Empty(t, AlignSeries(a, nil, w))
}

func TestCompare(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, utils.IST)
	a := dailySeries("2025-10-01", 379, func(i int) float64 { return 100 + float64(i) })
	b := dailySeries("2026-09-01", 40, func(i int) float64 { return 50 + float64(i%3) })

	w, err := TimeframeWindow(models.Timeframe1Y, now, time.Time{}, time.Time{})
	require.NoError(t, err)

	cmp := Compare(models.Timeframe1Y, w,
		Side{ISIN: "INF000000001", Name: "A", Series: a},
		Side{ISIN: "INF000000002", Name: "B", Series: b},
		Options{RiskFreeRate: DefaultRiskFreeRate, Freshness: DefaultFreshness(), Now: now},
	)

	assert.Equal(t, "2025-10-01", cmp.From)
	assert.Equal(t, "2026-10-14", cmp.To)
	assert.True(t, cmp.FundA.Fresh)
	assert.False(t, cmp.FundB.Fresh, "40 points is below the real-data floor")
	assert.Equal(t, 379, cmp.FundA.Points)
	assert.Equal(t, "INF000000001", cmp.FundA.Metrics.FundID)
	require.Len(t, cmp.Chart, 40)
	assert.Equal(t, 100.0, cmp.Chart[0].NormalizedA)
}
