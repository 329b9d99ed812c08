package datafeed

import "math"

// Aggregate buckets daily bars into week (Monday 00:00 UTC) or month
// (1st 00:00 UTC) bars. daily must be sorted by time.
func Aggregate(daily []Bar, r Resolution) []Bar {
	if len(daily) == 0 || !r.IsCalendar() {
		return nil
	}

	var out []Bar
	var cur Bar
	open := false

	for _, d := range daily {
		start := BucketStart(d.Time, r)
		if !open || start != cur.Time {
			if open {
				out = append(out, cur)
			}
			cur = Bar{
				Time:   start,
				Open:   d.Open,
				High:   d.High,
				Low:    d.Low,
				Close:  d.Close,
				Volume: d.Volume,
			}
			open = true
			continue
		}

		cur.High = math.Max(cur.High, d.High)
		cur.Low = math.Min(cur.Low, d.Low)
		cur.Close = d.Close
		cur.Volume += d.Volume
	}
	if open {
		out = append(out, cur)
	}

	return out
}
