package performance

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

// ErrInvalidTimeframe is returned for an unknown timeframe or a bad custom range.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

var timeframeMonths = map[models.Timeframe]int{
	models.Timeframe1Y: 12,
	models.Timeframe3Y: 36,
	models.Timeframe5Y: 60,
}

// TimeframeWindow resolves a timeframe at now. Preset timeframes start on the
// first day of the month N months back and end at now; custom uses from/to.
func TimeframeWindow(tf models.Timeframe, now, from, to time.Time) (Window, error) {
	if tf == models.TimeframeCustom {
		if from.IsZero() || to.IsZero() || to.Before(from) {
			return Window{}, fmt.Errorf("%w: custom range needs from <= to", ErrInvalidTimeframe)
		}
		return Window{From: from, To: endOfDay(to)}, nil
	}

	months, ok := timeframeMonths[tf]
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, tf)
	}
	now = now.In(utils.IST)
	start := time.Date(now.Year(), now.Month()-time.Month(months), 1, 0, 0, 0, 0, utils.IST)
	return Window{From: start, To: now}, nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// ParseTimeframe maps "1Y", "3Y", "5Y" or "custom", in any case, to a Timeframe.
func ParseTimeframe(s string) (models.Timeframe, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if up == "CUSTOM" {
		return models.TimeframeCustom, nil
	}
	tf := models.Timeframe(up)
	if _, ok := timeframeMonths[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return tf, nil
}

// AlignSeries pairs the points of a and b that share a calendar day inside w,
// sorts them by date and rebases both sides to 100 at the first common point.
func AlignSeries(a, b models.NAVSeries, w Window) []models.ChartPoint {
	byDay := make(map[string]models.NAVDataPoint, len(b))
	for _, p := range b {
		if at, err := utils.ParseNAVDate(p.Date); err == nil {
			key := utils.FormatDateIST(at)
			if _, dup := byDay[key]; !dup {
				byDay[key] = p
			}
		}
	}

	type aligned struct {
		at time.Time
		cp models.ChartPoint
	}
	var pts []aligned
	used := make(map[string]bool)
	for _, pa := range a {
		at, err := utils.ParseNAVDate(pa.Date)
		if err != nil || !w.Contains(at) {
			continue
		}
		key := utils.FormatDateIST(at)
		pb, ok := byDay[key]
		if !ok || used[key] {
			continue
		}
		used[key] = true
		pts = append(pts, aligned{at: at, cp: models.ChartPoint{Date: key, NAVA: pa.NAV, NAVB: pb.NAV}})
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].at.Before(pts[j].at) })

	out := make([]models.ChartPoint, len(pts))
	for i, p := range pts {
		out[i] = p.cp
	}
	if len(out) == 0 {
		return out
	}

	baseA, baseB := out[0].NAVA, out[0].NAVB
	for i := range out {
		if baseA > 0 {
			out[i].NormalizedA = out[i].NAVA / baseA * 100
		}
		if baseB > 0 {
			out[i].NormalizedB = out[i].NAVB / baseB * 100
		}
	}
	return out
}

// Options tunes a comparison.
type Options struct {
	RiskFreeRate float64
	Freshness    Freshness
	Now          time.Time
}

// Side is one fund entering a comparison.
type Side struct {
	ISIN   string
	Name   string
	Series models.NAVSeries
}

// Compare computes metrics and freshness for both funds over their full
// history and builds the rebased chart for the window.
func Compare(tf models.Timeframe, w Window, a, b Side, opts Options) models.Comparison {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	side := func(s Side) models.ComparedFund {
		return models.ComparedFund{
			ISIN:    s.ISIN,
			Name:    s.Name,
			Points:  len(s.Series),
			Fresh:   opts.Freshness.IsFresh(s.Series, now),
			Metrics: ComputeMetrics(s.ISIN, s.Name, s.Series, opts.RiskFreeRate),
		}
	}

	return models.Comparison{
		Timeframe: tf,
		From:      utils.FormatDateIST(w.From),
		To:        utils.FormatDateIST(w.To),
		FundA:     side(a),
		FundB:     side(b),
		Chart:     AlignSeries(a.Series, b.Series, w),
	}
}
