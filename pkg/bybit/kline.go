package bybit

import (
	"strconv"

	"chartfeed/internal/datafeed"

	"github.com/shopspring/decimal"
)

// ParseKlineList converts Bybit REST API kline rows to raw bars.
// Rows that are short or not numeric are skipped; range checks are left to the validator.
func ParseKlineList(raw [][]string) []datafeed.RawBar {
	out := make([]datafeed.RawBar, 0, len(raw))

	for _, row := range raw {
		if len(row) < 6 {
			continue // skip incomplete row
		}

		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}

		var vals [5]float64
		ok := true
		for i := range vals {
			v, err := ParseNumber(row[i+1])
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}

		out = append(out, datafeed.RawBar{
			Time:   start,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out
}

// ParseNumber parses a Bybit decimal string. NaN, Inf and empty strings are errors.
func ParseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// PriceScale converts a tick size such as "0.01" into the 10^n scale charts expect.
func PriceScale(tickSize string) int {
	d, err := decimal.NewFromString(tickSize)
	if err != nil || !d.IsPositive() {
		return 0
	}
	exp := d.Exponent()
	// "0.10" has exponent -2 but only one significant decimal
	d = d.Mul(decimal.New(1, -exp))
	for exp < 0 && d.Mod(decimal.NewFromInt(10)).IsZero() {
		d = d.Div(decimal.NewFromInt(10))
		exp++
	}
	if exp >= 0 {
		return 1
	}
	return int(decimal.New(1, -exp).IntPart())
}
