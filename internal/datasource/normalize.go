package datasource

import (
	"math"
	"sort"
	"time"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// NormalizeSeries turns raw [date, nav] history into an ascending series
// with day-over-day change. Points with an unparseable date or a non-positive
// or non-finite NAV are dropped; for duplicate dates the first point wins.
// Dates keep their source text.
func NormalizeSeries(hist []models.HistoricalPoint) models.NAVSeries {
	type dated struct {
		at time.Time
		p  models.HistoricalPoint
	}

	pts := make([]dated, 0, len(hist))
	seen := make(map[string]bool, len(hist))
	for _, p := range hist {
		if p.NAV <= 0 || math.IsNaN(p.NAV) || math.IsInf(p.NAV, 0) {
			continue
		}
		at, err := utils.ParseNAVDate(p.Date)
		if err != nil {
			continue
		}
		day := utils.FormatDateIST(at)
		if seen[day] {
			continue
		}
		seen[day] = true
		pts = append(pts, dated{at: at, p: p})
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].at.Before(pts[j].at) })

	series := make(models.NAVSeries, len(pts))
	for i, d := range pts {
		series[i] = models.NAVDataPoint{Date: d.p.Date, NAV: d.p.NAV}
		if i > 0 {
			prev := pts[i-1].p.NAV
			series[i].ChangePercent = (d.p.NAV - prev) / prev * 100
		}
	}
	return series
}

// ToFundSeries normalizes a decoded history response.
func ToFundSeries(h *models.HistoricalNAV, fetchedAt time.Time) *models.FundSeries {
	return &models.FundSeries{
		ISIN:       h.ISIN,
		Name:       h.Name,
		LatestNAV:  h.LatestNAV,
		LatestDate: h.LatestDate,
		Points:     NormalizeSeries(h.Historical),
		FetchedAt:  fetchedAt,
	}
}
