package datafeed

// Bar is one OHLCV record for a bucket. Time is the bucket start in ms since epoch.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// RawBar is an unvalidated OHLCV tuple as it arrives from upstream.
type RawBar struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceMode selects which ticker price feeds live bars.
type PriceMode string

const (
	PriceModeLast PriceMode = "lastPrice"
	PriceModeMark PriceMode = "markPrice"
)

// IsValid reports whether m is a known price mode.
func (m PriceMode) IsValid() bool {
	return m == PriceModeLast || m == PriceModeMark
}
