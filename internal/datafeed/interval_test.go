package datafeed

import (
	"testing"
	"time"
)

func ms(year int, month time.Month, day, hour, minute int) int64 {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC).UnixMilli()
}

// go test -v --run TestParseResolution
func TestParseResolution(t *testing.T) {
	cases := map[string]Resolution{
		"1":   Resolution1Min,
		"60":  Resolution60Min,
		"720": Resolution720Min,
		"D":   ResolutionDaily,
		"1d":  ResolutionDaily,
		"W":   ResolutionWeekly,
		"1W":  ResolutionWeekly,
		"M":   ResolutionMonthly,
		"1M":  ResolutionMonthly,
		" 5 ": Resolution5Min,
	}
	for in, want := range cases {
		got, err := ParseResolution(in)
		if err != nil {
			t.Errorf("ParseResolution(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseResolution(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "2", "1m", "abc", "1440"} {
		if _, err := ParseResolution(in); err == nil {
			t.Errorf("ParseResolution(%q) should fail", in)
		}
	}
}

// go test -v --run TestResolutionFromInterval
func TestResolutionFromInterval(t *testing.T) {
	for _, r := range SupportedResolutions {
		got, ok := ResolutionFromInterval(r.IntervalCode())
		if !ok || got != r {
			t.Errorf("round trip of %q through %q gave %q", r, r.IntervalCode(), got)
		}
	}
	if _, ok := ResolutionFromInterval("7"); ok {
		t.Error("unknown interval code should not map")
	}
}

// go test -v --run TestBucketStart
func TestBucketStart(t *testing.T) {
	cases := []struct {
		name string
		t    int64
		r    Resolution
		want int64
	}{
		{"minute", ms(2024, 3, 5, 10, 7) + 42_000, Resolution1Min, ms(2024, 3, 5, 10, 7)},
		{"15 minutes", ms(2024, 3, 5, 10, 44), Resolution15Min, ms(2024, 3, 5, 10, 30)},
		{"4 hours", ms(2024, 3, 5, 10, 44), Resolution240Min, ms(2024, 3, 5, 8, 0)},
		{"day", ms(2024, 3, 5, 23, 59), ResolutionDaily, ms(2024, 3, 5, 0, 0)},
		{"week from wednesday", ms(2024, 1, 3, 12, 0), ResolutionWeekly, ms(2024, 1, 1, 0, 0)},
		{"week from sunday", ms(2024, 1, 7, 23, 0), ResolutionWeekly, ms(2024, 1, 1, 0, 0)},
		{"week from monday", ms(2024, 1, 8, 0, 0), ResolutionWeekly, ms(2024, 1, 8, 0, 0)},
		{"month", ms(2024, 2, 29, 18, 0), ResolutionMonthly, ms(2024, 2, 1, 0, 0)},
	}
	for _, c := range cases {
		if got := BucketStart(c.t, c.r); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

// go test -v --run TestNextBucket
func TestNextBucket(t *testing.T) {
	if got := NextBucket(ms(2024, 1, 31, 5, 0), ResolutionMonthly); got != ms(2024, 2, 1, 0, 0) {
		t.Errorf("month after january: got %d", got)
	}
	if got := NextBucket(ms(2024, 12, 15, 0, 0), ResolutionMonthly); got != ms(2025, 1, 1, 0, 0) {
		t.Errorf("month after december: got %d", got)
	}
	if got := NextBucket(ms(2024, 1, 3, 0, 0), ResolutionWeekly); got != ms(2024, 1, 8, 0, 0) {
		t.Errorf("week: got %d", got)
	}
	if got := NextBucket(ms(2024, 1, 3, 0, 59), Resolution60Min); got != ms(2024, 1, 3, 1, 0) {
		t.Errorf("hour: got %d", got)
	}
}

// go test -v --run TestDefaultLookback
func TestDefaultLookback(t *testing.T) {
	day := 24 * time.Hour
	cases := map[Resolution]time.Duration{
		Resolution1Min:    7 * day,
		Resolution5Min:    7 * day,
		Resolution15Min:   30 * day,
		Resolution30Min:   30 * day,
		Resolution60Min:   180 * day,
		Resolution720Min:  180 * day,
		ResolutionDaily:   730 * day,
		ResolutionWeekly:  5 * 365 * day,
		ResolutionMonthly: 10 * 365 * day,
	}
	for r, want := range cases {
		if got := DefaultLookback(r); got != want {
			t.Errorf("DefaultLookback(%q) = %s, want %s", r, got, want)
		}
	}
}

// go test -v --run TestFloorDiv
func TestFloorDiv(t *testing.T) {
	if got := floorDiv(-1, 60_000); got != -1 {
		t.Errorf("floorDiv(-1) = %d", got)
	}
	if got := floorDiv(120_000, 60_000); got != 2 {
		t.Errorf("floorDiv(120000) = %d", got)
	}
}
