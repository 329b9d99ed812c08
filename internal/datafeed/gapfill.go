package datafeed

import "math"

// FillGaps returns bars with every missing bucket between the first and the
// last bar synthesized. Synthetic bars interpolate the close linearly between
// the neighbouring known closes, open at the previous close and carry no
// volume. bars must be sorted by time and bucket aligned.
func FillGaps(bars []Bar, r Resolution) []Bar {
	if len(bars) == 0 {
		return bars
	}

	out := make([]Bar, 0, len(bars))
	out = append(out, bars[0])

	for i := 1; i < len(bars); i++ {
		prev := bars[i-1]
		next := bars[i]

		// count the buckets strictly between prev and next
		var missing []int64
		for t := NextBucket(prev.Time, r); t < next.Time; t = NextBucket(t, r) {
			missing = append(missing, t)
		}

		steps := float64(len(missing) + 1)
		lastClose := prev.Close
		for j, t := range missing {
			c := prev.Close + (next.Close-prev.Close)*float64(j+1)/steps
			out = append(out, Bar{
				Time:   t,
				Open:   lastClose,
				High:   math.Max(lastClose, c),
				Low:    math.Min(lastClose, c),
				Close:  c,
				Volume: 0,
			})
			lastClose = c
		}
		out = append(out, next)
	}

	return out
}
