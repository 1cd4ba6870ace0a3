package performance

import (
	"time"

	"github.com/seenimoa/navcompare/pkg/models"
	"github.com/seenimoa/navcompare/pkg/utils"
)

const (
	DefaultMinRealPoints = 50
	DefaultFreshnessDays = 7
)

// Freshness decides whether a series looks like real, current data that can
// back long-window figures.
type Freshness struct {
	MinPoints int
	MaxAge    time.Duration
}

// DefaultFreshness requires 50 points and a latest date within 7 days.
func DefaultFreshness() Freshness {
	return Freshness{MinPoints: DefaultMinRealPoints, MaxAge: DefaultFreshnessDays * 24 * time.Hour}
}

// IsFresh reports whether series has enough points and its most recent date
// is no older than MaxAge at now.
func (f Freshness) IsFresh(series models.NAVSeries, now time.Time) bool {
	if len(series) < f.MinPoints {
		return false
	}
	var latest time.Time
	for _, p := range series {
		if at, err := utils.ParseNAVDate(p.Date); err == nil && at.After(latest) {
			latest = at
		}
	}
	if latest.IsZero() {
		return false
	}
	return now.Sub(latest) <= f.MaxAge
}

// IsDataFresh applies the default policy at the current time.
func IsDataFresh(series models.NAVSeries) bool {
	return IsDataFreshAt(series, time.Now())
}

// IsDataFreshAt applies the default policy at now.
func IsDataFreshAt(series models.NAVSeries, now time.Time) bool {
	return DefaultFreshness().IsFresh(series, now)
}
