package datafeed

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	QueueSize int       // capacity of the event queue
	PriceMode PriceMode // initial price mode, lastPrice when empty

	// UnsubscribeClearsAll drops every subscription on any unsubscribe call
	// instead of only the caller's.
	UnsubscribeClearsAll bool

	// OnPrice, if set, is called with every accepted ticker price.
	// It runs under the engine lock and must not block.
	OnPrice func(symbol string, price float64)
}

type subKey struct {
	symbol     string
	resolution Resolution
}

type subscription struct {
	key            subKey
	listenerID     string
	onTick         func(Bar)
	lastBucketTime int64
	lastBar        *Bar
}

// Engine owns the subscription registry and the last-price table and merges
// kline and ticker events into live bars. Transport events enter through a
// single queue drained by Run; API calls and event handling are serialized.
type Engine struct {
	mu         sync.Mutex
	subs       map[subKey]*subscription
	listeners  map[string]subKey
	lastPrices map[string]float64
	priceMode  PriceMode

	transport Transport
	events    chan Event
	clearAll  bool
	onPrice   func(string, float64)
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates an Engine that registers stream interest through transport.
func NewEngine(transport Transport, opts EngineOptions, logger *zap.Logger) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if !opts.PriceMode.IsValid() {
		opts.PriceMode = PriceModeLast
	}

	return &Engine{
		subs:       make(map[subKey]*subscription),
		listeners:  make(map[string]subKey),
		lastPrices: make(map[string]float64),
		priceMode:  opts.PriceMode,
		transport:  transport,
		events:     make(chan Event, opts.QueueSize),
		clearAll:   opts.UnsubscribeClearsAll,
		onPrice:    opts.OnPrice,
		logger:     logger,
		now:        time.Now,
	}
}

// Enqueue hands an event to the engine without blocking the caller.
// It returns false when the queue is full and the event was dropped.
func (e *Engine) Enqueue(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.logger.Warn("event queue full, dropping event", zap.String("symbol", ev.eventSymbol()))
		return false
	}
}

// Run drains the event queue until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.Handle(ev)
		}
	}
}

// Handle applies one event to the registry.
func (e *Engine) Handle(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := ev.(type) {
	case KlineEvent:
		e.handleKline(ev)
	case TickerEvent:
		e.handleTicker(ev)
	}
}

// Subscribe registers onTick for symbol at resolution r under listenerID,
// replacing any subscription for the same symbol and resolution. When a
// price for the symbol is already known, a zero-volume bar at the current
// bucket is emitted before Subscribe returns.
func (e *Engine) Subscribe(symbol string, r Resolution, listenerID string, onTick func(Bar)) {
	if symbol == "" || !r.IsValid() || onTick == nil {
		e.logger.Warn("ignoring invalid subscription",
			zap.String("symbol", symbol),
			zap.String("resolution", string(r)),
			zap.String("listener", listenerID),
		)
		return
	}
	if listenerID == "" {
		listenerID = symbol + "_#_" + string(r)
	}

	key := subKey{symbol: symbol, resolution: r}

	e.mu.Lock()
	// a listener owns at most one key; moving it drops the old one
	if oldKey, ok := e.listeners[listenerID]; ok && oldKey != key {
		if old, ok := e.subs[oldKey]; ok && old.listenerID == listenerID {
			delete(e.subs, oldKey)
		}
	}
	if prev, ok := e.subs[key]; ok && prev.listenerID != listenerID {
		delete(e.listeners, prev.listenerID)
	}
	sub := &subscription{key: key, listenerID: listenerID, onTick: onTick}
	e.subs[key] = sub
	e.listeners[listenerID] = key

	if price, ok := e.lastPrices[symbol]; ok {
		e.store(sub, Bar{
			Time:  BucketStart(e.now().UnixMilli(), r),
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
		})
	}
	e.mu.Unlock()

	e.logger.Debug("subscribed",
		zap.String("symbol", symbol),
		zap.String("resolution", string(r)),
		zap.String("listener", listenerID),
	)

	// topic writes may block on the socket, keep them outside the lock
	if e.transport != nil {
		if err := e.transport.SubscribeToKlines(symbol, r.IntervalCode()); err != nil {
			e.logger.Warn("kline subscription failed", zap.String("symbol", symbol), zap.Error(err))
		}
		if err := e.transport.SubscribeToTicker(symbol); err != nil {
			e.logger.Warn("ticker subscription failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// Unsubscribe removes the subscription registered under listenerID, or every
// subscription when the engine was built with UnsubscribeClearsAll.
func (e *Engine) Unsubscribe(listenerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clearAll {
		e.subs = make(map[subKey]*subscription)
		e.listeners = make(map[string]subKey)
		return
	}

	key, ok := e.listeners[listenerID]
	if !ok {
		return
	}
	delete(e.listeners, listenerID)
	// the key may have been taken over by a newer listener
	if sub, ok := e.subs[key]; ok && sub.listenerID == listenerID {
		delete(e.subs, key)
	}
}

// UpdatePriceType switches the ticker field used for live bars. Bars already
// emitted are not touched.
func (e *Engine) UpdatePriceType(mode PriceMode) {
	if !mode.IsValid() {
		return
	}
	e.mu.Lock()
	e.priceMode = mode
	e.mu.Unlock()
}

// PriceType returns the current price mode.
func (e *Engine) PriceType() PriceMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.priceMode
}

// SeedLastPrice records a known price for symbol unless one was already observed.
func (e *Engine) SeedLastPrice(symbol string, price float64) {
	if symbol == "" || !validPrice(price) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.lastPrices[symbol]; !ok {
		e.lastPrices[symbol] = price
	}
}

// LastPrice returns the last observed price for symbol.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.lastPrices[symbol]
	return p, ok
}

// Subscriptions returns the number of active subscriptions.
func (e *Engine) Subscriptions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Engine) handleKline(ev KlineEvent) {
	r, ok := ResolutionFromInterval(ev.Interval)
	if !ok {
		return
	}
	sub, ok := e.subs[subKey{symbol: ev.Symbol, resolution: r}]
	if !ok {
		return
	}

	bar, ok := ValidateBar(RawBar{
		Time:   ev.Start,
		Open:   ev.Open,
		High:   ev.High,
		Low:    ev.Low,
		Close:  ev.Close,
		Volume: ev.Volume,
	})
	if !ok {
		e.logger.Debug("dropping invalid kline", zap.String("symbol", ev.Symbol), zap.Int64("start", ev.Start))
		return
	}
	if sub.lastBar != nil && bar.Time < sub.lastBucketTime {
		return
	}

	if !ev.Confirmed && sub.lastBar != nil && sub.lastBar.Time == bar.Time {
		merged := *sub.lastBar
		merged.High = math.Max(merged.High, bar.High)
		merged.Low = math.Min(merged.Low, bar.Low)
		merged.Close = bar.Close
		merged.Volume = bar.Volume
		bar = merged
	}
	e.store(sub, bar)
}

func (e *Engine) handleTicker(ev TickerEvent) {
	price := tickerPrice(ev, e.priceMode)
	if ev.Symbol == "" || !validPrice(price) {
		return
	}

	e.lastPrices[ev.Symbol] = price
	if e.onPrice != nil {
		e.onPrice(ev.Symbol, price)
	}

	now := e.now().UnixMilli()
	for key, sub := range e.subs {
		if key.symbol != ev.Symbol {
			continue
		}

		bucket := BucketStart(now, key.resolution)
		// local clock behind upstream: keep feeding the newest bar
		if sub.lastBar != nil && bucket < sub.lastBar.Time {
			bucket = sub.lastBar.Time
		}

		var bar Bar
		if sub.lastBar != nil && sub.lastBar.Time == bucket {
			bar = *sub.lastBar
			bar.High = math.Max(bar.High, price)
			bar.Low = math.Min(bar.Low, price)
			bar.Close = price
		} else {
			bar = Bar{Time: bucket, Open: price, High: price, Low: price, Close: price}
		}
		if validPrice(ev.Volume) && ev.Volume > bar.Volume {
			bar.Volume = ev.Volume
		}
		e.store(sub, bar)
	}
}

// store makes bar the subscription's current bar and emits it.
func (e *Engine) store(sub *subscription, bar Bar) {
	b := bar
	sub.lastBar = &b
	sub.lastBucketTime = bar.Time
	sub.onTick(bar)
}

// tickerPrice picks the price mode selects from ev.
func tickerPrice(ev TickerEvent, mode PriceMode) float64 {
	if mode == PriceModeMark {
		return ev.MarkPrice
	}
	return ev.LastPrice
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
