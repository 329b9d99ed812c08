package datafeed

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub fans transport events out to one Engine per chart consumer. Engines
// share the transport, the price mode and the last observed prices; each
// keeps its own subscription registry, so consumers never replace or clear
// each other's charts.
type Hub struct {
	mu        sync.Mutex
	engines   map[*Engine]struct{}
	tickers   map[string]TickerEvent // latest merged ticker per symbol
	seeds     map[string]float64     // prices known before the first ticker
	priceMode PriceMode

	transport Transport
	events    chan Event
	clearAll  bool
	onPrice   func(string, float64)
	logger    *zap.Logger
}

// NewHub creates a Hub. opts applies to every engine it hands out; OnPrice
// is called once per accepted ticker, not once per engine.
func NewHub(transport Transport, opts EngineOptions, logger *zap.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if !opts.PriceMode.IsValid() {
		opts.PriceMode = PriceModeLast
	}

	return &Hub{
		engines:   make(map[*Engine]struct{}),
		tickers:   make(map[string]TickerEvent),
		seeds:     make(map[string]float64),
		priceMode: opts.PriceMode,
		transport: transport,
		events:    make(chan Event, opts.QueueSize),
		clearAll:  opts.UnsubscribeClearsAll,
		onPrice:   opts.OnPrice,
		logger:    logger,
	}
}

// NewEngine registers a fresh engine that already knows every last price.
// Engines from a hub are fed through Handle; their own queue stays unused.
func (h *Hub) NewEngine() *Engine {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := NewEngine(h.transport, EngineOptions{
		QueueSize:            1,
		PriceMode:            h.priceMode,
		UnsubscribeClearsAll: h.clearAll,
	}, h.logger)

	for symbol, price := range h.seeds {
		e.lastPrices[symbol] = price
	}
	for symbol, t := range h.tickers {
		if p := tickerPrice(t, h.priceMode); validPrice(p) {
			e.lastPrices[symbol] = p
		}
	}

	h.engines[e] = struct{}{}
	return e
}

// Release stops routing events to e.
func (h *Hub) Release(e *Engine) {
	h.mu.Lock()
	delete(h.engines, e)
	h.mu.Unlock()
}

// Enqueue hands an event to the hub without blocking the caller.
// It returns false when the queue is full and the event was dropped.
func (h *Hub) Enqueue(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	default:
		h.logger.Warn("event queue full, dropping event", zap.String("symbol", ev.eventSymbol()))
		return false
	}
}

// Run drains the event queue until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.Handle(ev)
		}
	}
}

// Handle records ticker prices and applies ev to every engine.
func (h *Hub) Handle(ev Event) {
	h.mu.Lock()
	if t, ok := ev.(TickerEvent); ok && t.Symbol != "" {
		if p := tickerPrice(t, h.priceMode); validPrice(p) && h.onPrice != nil {
			h.onPrice(t.Symbol, p)
		}

		// delta pushes may omit a price, keep the previous one
		prev := h.tickers[t.Symbol]
		if !validPrice(t.LastPrice) {
			t.LastPrice = prev.LastPrice
		}
		if !validPrice(t.MarkPrice) {
			t.MarkPrice = prev.MarkPrice
		}
		h.tickers[t.Symbol] = t
	}
	engines := make([]*Engine, 0, len(h.engines))
	for e := range h.engines {
		engines = append(engines, e)
	}
	h.mu.Unlock()

	for _, e := range engines {
		e.Handle(ev)
	}
}

// UpdatePriceType switches the price mode of every current and future engine.
func (h *Hub) UpdatePriceType(mode PriceMode) {
	if !mode.IsValid() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.priceMode = mode
	for e := range h.engines {
		e.UpdatePriceType(mode)
	}
}

// PriceType returns the current price mode.
func (h *Hub) PriceType() PriceMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.priceMode
}

// SeedLastPrice records a known price for symbol unless one was already observed.
func (h *Hub) SeedLastPrice(symbol string, price float64) {
	if symbol == "" || !validPrice(price) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.tickers[symbol]; ok {
		return
	}
	if _, ok := h.seeds[symbol]; ok {
		return
	}
	h.seeds[symbol] = price
	for e := range h.engines {
		e.SeedLastPrice(symbol, price)
	}
}

// LastPrice returns the last observed price for symbol in the current mode.
func (h *Hub) LastPrice(symbol string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.tickers[symbol]; ok {
		if p := tickerPrice(t, h.priceMode); validPrice(p) {
			return p, true
		}
	}
	p, ok := h.seeds[symbol]
	return p, ok
}

// Subscriptions returns the number of active subscriptions across all engines.
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	engines := make([]*Engine, 0, len(h.engines))
	for e := range h.engines {
		engines = append(engines, e)
	}
	h.mu.Unlock()

	n := 0
	for _, e := range engines {
		n += e.Subscriptions()
	}
	return n
}

// Consumers returns the number of engines handed out and not yet released.
func (h *Hub) Consumers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.engines)
}
