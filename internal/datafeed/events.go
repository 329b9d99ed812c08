package datafeed

// Event is a normalized transport event. It is either a KlineEvent or a TickerEvent.
type Event interface {
	eventSymbol() string
}

// KlineEvent is a candle update for one symbol and upstream interval.
type KlineEvent struct {
	Symbol    string
	Interval  string // upstream interval code, e.g. "1", "60", "D"
	Start     int64  // bucket start, ms since epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Confirmed bool
}

// TickerEvent carries the latest trade and mark price of a symbol.
// Volume, when positive, is the cumulative volume of the current bucket.
type TickerEvent struct {
	Symbol    string
	LastPrice float64
	MarkPrice float64
	Volume    float64
}

func (e KlineEvent) eventSymbol() string  { return e.Symbol }
func (e TickerEvent) eventSymbol() string { return e.Symbol }

// Transport registers stream interest with the upstream streaming connection.
type Transport interface {
	SubscribeToKlines(symbol, interval string) error
	SubscribeToTicker(symbol string) error
}
