package datafeed

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is a chart timeframe as the charting library names it.
type Resolution string

const (
	Resolution1Min    Resolution = "1"
	Resolution3Min    Resolution = "3"
	Resolution5Min    Resolution = "5"
	Resolution15Min   Resolution = "15"
	Resolution30Min   Resolution = "30"
	Resolution60Min   Resolution = "60"
	Resolution120Min  Resolution = "120"
	Resolution240Min  Resolution = "240"
	Resolution360Min  Resolution = "360"
	Resolution720Min  Resolution = "720"
	ResolutionDaily   Resolution = "1D"
	ResolutionWeekly  Resolution = "1W"
	ResolutionMonthly Resolution = "1M"
)

const (
	msPerMinute int64 = 60_000
	msPerDay    int64 = 86_400_000
)

// resolutionMeta holds the upstream interval code and the fixed length of a resolution.
type resolutionMeta struct {
	IntervalCode string
	Minutes      int64
}

var resolutions = map[Resolution]resolutionMeta{
	Resolution1Min:    {IntervalCode: "1", Minutes: 1},
	Resolution3Min:    {IntervalCode: "3", Minutes: 3},
	Resolution5Min:    {IntervalCode: "5", Minutes: 5},
	Resolution15Min:   {IntervalCode: "15", Minutes: 15},
	Resolution30Min:   {IntervalCode: "30", Minutes: 30},
	Resolution60Min:   {IntervalCode: "60", Minutes: 60},
	Resolution120Min:  {IntervalCode: "120", Minutes: 120},
	Resolution240Min:  {IntervalCode: "240", Minutes: 240},
	Resolution360Min:  {IntervalCode: "360", Minutes: 360},
	Resolution720Min:  {IntervalCode: "720", Minutes: 720},
	ResolutionDaily:   {IntervalCode: "D", Minutes: 1440},
	ResolutionWeekly:  {IntervalCode: "W", Minutes: 7 * 1440},
	ResolutionMonthly: {IntervalCode: "M", Minutes: 30 * 1440}, // range sizing only, buckets are calendar months
}

// SupportedResolutions lists every resolution in ascending order.
var SupportedResolutions = []Resolution{
	Resolution1Min, Resolution3Min, Resolution5Min, Resolution15Min, Resolution30Min,
	Resolution60Min, Resolution120Min, Resolution240Min, Resolution360Min, Resolution720Min,
	ResolutionDaily, ResolutionWeekly, ResolutionMonthly,
}

// ParseResolution accepts the charting library's spellings ("D", "1D", "W", ...)
// as well as upstream interval codes.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "1D":
		return ResolutionDaily, nil
	case "W", "1W":
		return ResolutionWeekly, nil
	}
	// "M" is case sensitive: "1m" would read as one minute in some clients
	switch strings.TrimSpace(s) {
	case "M", "1M":
		return ResolutionMonthly, nil
	}
	r := Resolution(strings.TrimSpace(s))
	if _, ok := resolutions[r]; !ok {
		return "", fmt.Errorf("unsupported resolution: %q", s)
	}
	return r, nil
}

// ResolutionFromInterval maps an upstream interval code back to a resolution.
func ResolutionFromInterval(code string) (Resolution, bool) {
	for r, meta := range resolutions {
		if meta.IntervalCode == code {
			return r, true
		}
	}
	return "", false
}

// IsValid reports whether r is one of the supported resolutions.
func (r Resolution) IsValid() bool {
	_, ok := resolutions[r]
	return ok
}

// IntervalCode returns the upstream interval code, e.g. "60" or "D".
func (r Resolution) IntervalCode() string {
	return resolutions[r].IntervalCode
}

// IsCalendar reports whether buckets of r follow the calendar (week, month).
func (r Resolution) IsCalendar() bool {
	return r == ResolutionWeekly || r == ResolutionMonthly
}

// Duration returns the fixed length of one bar in milliseconds. Months are
// 30 days here; calendar bucketing goes through BucketStart.
func Duration(r Resolution) int64 {
	return resolutions[r].Minutes * msPerMinute
}

// BucketStart returns the start of the bucket containing t (ms epoch).
func BucketStart(t int64, r Resolution) int64 {
	switch r {
	case ResolutionWeekly:
		return weekStart(t)
	case ResolutionMonthly:
		return monthStart(t)
	}
	d := Duration(r)
	if d <= 0 {
		return t
	}
	return floorDiv(t, d) * d
}

// NextBucket returns the start of the bucket after the one containing t.
func NextBucket(t int64, r Resolution) int64 {
	switch r {
	case ResolutionWeekly:
		return weekStart(t) + 7*msPerDay
	case ResolutionMonthly:
		m := time.UnixMilli(monthStart(t)).UTC()
		return m.AddDate(0, 1, 0).UnixMilli()
	}
	return BucketStart(t, r) + Duration(r)
}

// DefaultLookback is the history range requested when the consumer gives no start.
func DefaultLookback(r Resolution) time.Duration {
	const day = 24 * time.Hour
	const year = 365 * day

	switch r {
	case ResolutionDaily:
		return 2 * year
	case ResolutionWeekly:
		return 5 * year
	case ResolutionMonthly:
		return 10 * year
	}
	minutes := resolutions[r].Minutes
	switch {
	case minutes < 15:
		return 7 * day
	case minutes <= 30:
		return 30 * day
	default:
		return 180 * day
	}
}

// weekStart returns Monday 00:00 UTC of the week containing t.
func weekStart(t int64) int64 {
	ts := time.UnixMilli(t).UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset).UnixMilli()
}

// monthStart returns the 1st 00:00 UTC of the month containing t.
func monthStart(t int64) int64 {
	ts := time.UnixMilli(t).UTC()
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
