package bybit

import (
	"fmt"
	"strings"
)

// Category is the Bybit v5 product category.
type Category string

const (
	CategoryLinear  Category = "linear"
	CategorySpot    Category = "spot"
	CategoryInverse Category = "inverse"
)

const (
	klineTopicPrefix  = "kline"
	tickerTopicPrefix = "tickers"
)

// validIntervals are the interval codes accepted by kline endpoints and topics.
var validIntervals = map[string]struct{}{
	"1": {}, "3": {}, "5": {}, "15": {}, "30": {},
	"60": {}, "120": {}, "240": {}, "360": {}, "720": {},
	"D": {}, "W": {}, "M": {},
}

// IsValidInterval reports whether s is a Bybit kline interval code.
func IsValidInterval(s string) bool {
	_, ok := validIntervals[s]
	return ok
}

// KlineTopic builds a topic like "kline.1.BTCUSDT".
func KlineTopic(interval, symbol string) string {
	return fmt.Sprintf("%s.%s.%s", klineTopicPrefix, interval, symbol)
}

// TickerTopic builds a topic like "tickers.BTCUSDT".
func TickerTopic(symbol string) string {
	return fmt.Sprintf("%s.%s", tickerTopicPrefix, symbol)
}

// IsKlineTopic returns true if the topic string indicates a kline stream.
func IsKlineTopic(topic string) bool {
	return strings.HasPrefix(topic, klineTopicPrefix+".")
}

// IsTickerTopic returns true if the topic string indicates a ticker stream.
func IsTickerTopic(topic string) bool {
	return strings.HasPrefix(topic, tickerTopicPrefix+".")
}

// ParseKlineTopic splits "kline.1.BTCUSDT" into interval and symbol.
func ParseKlineTopic(topic string) (interval, symbol string, ok bool) {
	parts := strings.Split(topic, ".")
	if len(parts) != 3 || parts[0] != klineTopicPrefix {
		return "", "", false
	}
	return parts[1], parts[2], parts[1] != "" && parts[2] != ""
}

// ParseTickerTopic extracts the symbol from "tickers.BTCUSDT".
func ParseTickerTopic(topic string) (string, bool) {
	parts := strings.Split(topic, ".")
	if len(parts) != 2 || parts[0] != tickerTopicPrefix {
		return "", false
	}
	return parts[1], parts[1] != ""
}
