package datafeed

import "math"

// ValidateBar checks a raw tuple and returns a bar whose high and low cover
// open and close. ok is false when any price or the time is non-positive,
// the volume is negative, or a field is not a finite number.
func ValidateBar(raw RawBar) (Bar, bool) {
	for _, v := range []float64{raw.Open, raw.High, raw.Low, raw.Close, raw.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Bar{}, false
		}
	}
	if raw.Time <= 0 || raw.Open <= 0 || raw.High <= 0 || raw.Low <= 0 || raw.Close <= 0 {
		return Bar{}, false
	}
	if raw.Volume < 0 {
		return Bar{}, false
	}

	return Bar{
		Time:   raw.Time,
		Open:   raw.Open,
		High:   math.Max(raw.High, math.Max(raw.Open, raw.Close)),
		Low:    math.Min(raw.Low, math.Min(raw.Open, raw.Close)),
		Close:  raw.Close,
		Volume: raw.Volume,
	}, true
}

// ValidateBars keeps the valid tuples of raw, in input order.
func ValidateBars(raw []RawBar) []Bar {
	out := make([]Bar, 0, len(raw))
	for _, r := range raw {
		if b, ok := ValidateBar(r); ok {
			out = append(out, b)
		}
	}
	return out
}
