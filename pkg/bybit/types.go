package bybit

import "encoding/json"

// BybitResponse represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type BybitResponse struct {
	RetCode    int                    `json:"retCode"`    // 0 means success; non-zero indicates an error code
	RetMsg     string                 `json:"retMsg"`     // Human-readable message describing the result or error
	Result     json.RawMessage        `json:"result"`     // Delay decoding
	RetExtInfo map[string]interface{} `json:"retExtInfo"` // Optional extra info (e.g. rate limits, error hints)
	Time       int64                  `json:"time"`       // Server timestamp (in milliseconds since epoch)
}

// Instrument is one entry of the instruments-info endpoint.
type Instrument struct {
	Symbol      string `json:"symbol"`    // e.g., "BTCUSDT"
	BaseCoin    string `json:"baseCoin"`  // e.g., "BTC"
	QuoteCoin   string `json:"quoteCoin"` // e.g., "USDT"
	Status      string `json:"status"`    // "Trading", "PreLaunch", ...
	PriceFilter struct {
		TickSize string `json:"tickSize"` // e.g., "0.10"
	} `json:"priceFilter"`
}

type InstrumentListResponse struct {
	Category       string       `json:"category"`
	NextPageCursor string       `json:"nextPageCursor"`
	List           []Instrument `json:"list"`
}

// KlinesResponse rows are [start, open, high, low, close, volume, turnover], newest first.
type KlinesResponse struct {
	Category string     `json:"category"`
	Symbol   string     `json:"symbol"`
	List     [][]string `json:"list"`
}

// WSMessage is the envelope shared by every public stream push and op reply.
type WSMessage struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // "snapshot" or "delta"
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
}

// WSKline is one element of a kline push.
type WSKline struct {
	Start     int64  `json:"start"`     // Start time of the kline (in milliseconds since epoch)
	End       int64  `json:"end"`       // End time of the kline (in milliseconds since epoch)
	Interval  string `json:"interval"`  // Interval code (e.g., "1", "60", "D")
	Open      string `json:"open"`      // Opening price
	Close     string `json:"close"`     // Closing price
	High      string `json:"high"`      // Highest price during the interval
	Low       string `json:"low"`       // Lowest price during the interval
	Volume    string `json:"volume"`    // Trade volume (number of units traded)
	Turnover  string `json:"turnover"`  // Total traded value
	Confirm   bool   `json:"confirm"`   // Whether the kline is finalized (true when the interval closes)
	Timestamp int64  `json:"timestamp"` // Time when the event was generated (in milliseconds since epoch)
}

// WSTicker is a ticker push. Delta pushes only carry the fields that changed.
type WSTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	MarkPrice string `json:"markPrice"`
	Volume24h string `json:"volume24h"`
}
