package stream

import (
	"encoding/json"

	"chartfeed/internal/datafeed"
	"chartfeed/pkg/bybit"

	"go.uber.org/zap"
)

// Sink receives normalized transport events.
type Sink interface {
	Enqueue(ev datafeed.Event) bool
}

// MakeMessageHandler returns a function that parses Bybit WebSocket pushes
// into kline and ticker events and hands them to sink. Op replies and
// unknown topics are ignored.
func MakeMessageHandler(logger *zap.Logger, sink Sink) func(msg []byte) {
	return func(msg []byte) {
		var parsed bybit.WSMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Warn("failed to parse ws message", zap.Error(err))
			return
		}

		if parsed.Op != "" {
			if parsed.Success != nil && !*parsed.Success {
				logger.Warn("ws op rejected", zap.String("op", parsed.Op), zap.String("msg", parsed.RetMsg))
			}
			return
		}

		switch {
		case bybit.IsKlineTopic(parsed.Topic):
			for _, ev := range ParseKlines(parsed.Topic, parsed.Data) {
				sink.Enqueue(ev)
			}
		case bybit.IsTickerTopic(parsed.Topic):
			if ev, ok := ParseTicker(parsed.Topic, parsed.Data); ok {
				sink.Enqueue(ev)
			}
		}
	}
}

// ParseKlines normalizes the data array of a kline push. Entries whose
// numbers do not parse are skipped.
func ParseKlines(topic string, data json.RawMessage) []datafeed.KlineEvent {
	interval, symbol, ok := bybit.ParseKlineTopic(topic) // e.g., "kline.1.BTCUSDT" → "1", "BTCUSDT"
	if !ok {
		return nil
	}

	var klines []bybit.WSKline
	if err := json.Unmarshal(data, &klines); err != nil {
		return nil
	}

	out := make([]datafeed.KlineEvent, 0, len(klines))
	for _, k := range klines {
		open, err1 := bybit.ParseNumber(k.Open)
		high, err2 := bybit.ParseNumber(k.High)
		low, err3 := bybit.ParseNumber(k.Low)
		closePrice, err4 := bybit.ParseNumber(k.Close)
		volume, err5 := bybit.ParseNumber(k.Volume)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}

		if k.Interval != "" {
			interval = k.Interval
		}
		out = append(out, datafeed.KlineEvent{
			Symbol:    symbol,
			Interval:  interval,
			Start:     k.Start,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Confirmed: k.Confirm,
		})
	}
	return out
}

// ParseTicker normalizes a ticker push. Delta pushes may omit either price;
// a missing price is left at zero and rejected downstream.
func ParseTicker(topic string, data json.RawMessage) (datafeed.TickerEvent, bool) {
	symbol, ok := bybit.ParseTickerTopic(topic)
	if !ok {
		return datafeed.TickerEvent{}, false
	}

	var t bybit.WSTicker
	if err := json.Unmarshal(data, &t); err != nil {
		return datafeed.TickerEvent{}, false
	}
	if t.Symbol != "" {
		symbol = t.Symbol
	}

	ev := datafeed.TickerEvent{Symbol: symbol}
	if v, err := bybit.ParseNumber(t.LastPrice); err == nil {
		ev.LastPrice = v
	}
	if v, err := bybit.ParseNumber(t.MarkPrice); err == nil {
		ev.MarkPrice = v
	}
	if ev.LastPrice == 0 && ev.MarkPrice == 0 {
		return datafeed.TickerEvent{}, false
	}
	return ev, true
}
