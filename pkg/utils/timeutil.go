package utils

import (
	"fmt"
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// AMFIDateLayout is the DD-MMM-YYYY layout used by the AMFI bulk file.
const AMFIDateLayout = "02-Jan-2006"

// navDateLayouts lists the date layouts seen across NAV sources, most common first.
var navDateLayouts = []string{
	"2006-01-02",
	AMFIDateLayout,
	"02-01-2006",
	"2-Jan-2006",
	time.RFC3339,
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// ParseNAVDate parses a NAV date in any of the known source layouts, in IST.
// Month names match case-insensitively, so "05-JAN-2024" is accepted.
func ParseNAVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range navDateLayouts {
		if t, err := time.ParseInLocation(layout, s, IST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// FormatAMFIDate formats a time as DD-MMM-YYYY in IST.
func FormatAMFIDate(t time.Time) string {
	return t.In(IST).Format(AMFIDateLayout)
}

// FormatDateIST formats a time.Time to "2006-01-02" in IST.
func FormatDateIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}

// FormatDateTimeIST formats a time.Time to "2006-01-02 15:04:05 IST".
func FormatDateTimeIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02 15:04:05 IST")
}

// DaysSince returns the fractional number of days elapsed from t to now.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
