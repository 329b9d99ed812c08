package datafeed

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Datafeed is the contract a charting front-end drives. Every result is
// delivered through callbacks; no method reports failure by return value.
type Datafeed interface {
	OnReady(cb func(Configuration))
	SearchSymbols(query string, cb func([]SymbolSearchResult))
	ResolveSymbol(name string, onResolve func(SymbolInfo), onError func(reason string))
	GetBars(info SymbolInfo, r Resolution, period PeriodParams, onResult func([]Bar, HistoryMetadata), onError func(reason string))
	SubscribeBars(info SymbolInfo, r Resolution, onTick func(Bar), listenerID string, onResetCacheNeeded func())
	UnsubscribeBars(listenerID string)
}

// Configuration is announced by OnReady.
type Configuration struct {
	SupportedResolutions   []Resolution `json:"supported_resolutions"`
	SupportsSearch         bool         `json:"supports_search"`
	SupportsGroupRequest   bool         `json:"supports_group_request"`
	SupportsMarks          bool         `json:"supports_marks"`
	SupportsTimescaleMarks bool         `json:"supports_timescale_marks"`
	SupportsTime           bool         `json:"supports_time"`
}

// SymbolSearchResult is one entry returned by SearchSymbols.
type SymbolSearchResult struct {
	Symbol      string `json:"symbol"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Ticker      string `json:"ticker"`
	Type        string `json:"type"`
}

// SymbolInfo labels a chart.
type SymbolInfo struct {
	Name                 string       `json:"name"`
	Ticker               string       `json:"ticker"`
	Description          string       `json:"description"`
	Type                 string       `json:"type"`
	Session              string       `json:"session"`
	Timezone             string       `json:"timezone"`
	Exchange             string       `json:"exchange"`
	ListedExchange       string       `json:"listed_exchange"`
	Format               string       `json:"format"`
	Minmov               int          `json:"minmov"`
	Pricescale           int          `json:"pricescale"`
	HasIntraday          bool         `json:"has_intraday"`
	HasDaily             bool         `json:"has_daily"`
	HasWeeklyAndMonthly  bool         `json:"has_weekly_and_monthly"`
	SupportedResolutions []Resolution `json:"supported_resolutions"`
	VolumePrecision      int          `json:"volume_precision"`
	DataStatus           string       `json:"data_status"`
}

// PeriodParams is the range requested by GetBars. Zero times mean "not given".
type PeriodParams struct {
	From             time.Time
	To               time.Time
	CountBack        int
	FirstDataRequest bool
}

// HistoryMetadata accompanies a GetBars result.
type HistoryMetadata struct {
	NoData bool `json:"noData"`
}

// SymbolMeta is what the symbol catalog knows about an upstream symbol.
type SymbolMeta struct {
	Symbol      string
	BaseCoin    string
	QuoteCoin   string
	Description string
	PriceScale  int
}

// SymbolCatalog is a searchable list of known symbols.
type SymbolCatalog interface {
	Search(query string) []SymbolMeta
	Lookup(symbol string) (SymbolMeta, bool)
}

// FeedOptions configures a Feed.
type FeedOptions struct {
	Exchange       string
	HistoryTimeout time.Duration
}

// Feed implements Datafeed over an Engine, a Fetcher and a symbol catalog.
type Feed struct {
	engine  *Engine
	fetcher *Fetcher
	catalog SymbolCatalog
	opts    FeedOptions
	logger  *zap.Logger
}

var _ Datafeed = (*Feed)(nil)

// NewFeed wires a Feed. catalog may be nil.
func NewFeed(engine *Engine, fetcher *Fetcher, catalog SymbolCatalog, opts FeedOptions, logger *zap.Logger) *Feed {
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = 10 * time.Second
	}
	if opts.Exchange == "" {
		opts.Exchange = "Bybit"
	}
	return &Feed{
		engine:  engine,
		fetcher: fetcher,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
	}
}

// WithEngine returns a Feed sharing f's history and catalog but streaming
// live bars from e.
func (f *Feed) WithEngine(e *Engine) *Feed {
	cp := *f
	cp.engine = e
	return &cp
}

func (f *Feed) OnReady(cb func(Configuration)) {
	cb(Configuration{
		SupportedResolutions: append([]Resolution(nil), SupportedResolutions...),
		SupportsSearch:       true,
		SupportsGroupRequest: false,
		SupportsTime:         true,
	})
}

// SearchSymbols matches query against symbol and description, case-insensitively.
func (f *Feed) SearchSymbols(query string, cb func([]SymbolSearchResult)) {
	results := []SymbolSearchResult{}
	if f.catalog != nil {
		for _, m := range f.catalog.Search(query) {
			results = append(results, SymbolSearchResult{
				Symbol:      m.Symbol,
				FullName:    f.opts.Exchange + ":" + m.Symbol,
				Description: m.Description,
				Exchange:    f.opts.Exchange,
				Ticker:      m.Symbol,
				Type:        "crypto",
			})
		}
	}
	cb(results)
}

// ResolveSymbol always resolves a non-empty name, known to the catalog or not,
// so the chart never blocks on an unknown symbol.
func (f *Feed) ResolveSymbol(name string, onResolve func(SymbolInfo), onError func(reason string)) {
	symbol := strings.TrimSpace(name)
	if i := strings.LastIndex(symbol, ":"); i >= 0 {
		symbol = symbol[i+1:]
	}
	if symbol == "" {
		onError("unknown_symbol")
		return
	}

	info := SymbolInfo{
		Name:                 symbol,
		Ticker:               symbol,
		Description:          symbol,
		Type:                 "crypto",
		Session:              "24x7",
		Timezone:             "Etc/UTC",
		Exchange:             f.opts.Exchange,
		ListedExchange:       f.opts.Exchange,
		Format:               "price",
		Minmov:               1,
		Pricescale:           100,
		HasIntraday:          true,
		HasDaily:             true,
		HasWeeklyAndMonthly:  true,
		SupportedResolutions: append([]Resolution(nil), SupportedResolutions...),
		VolumePrecision:      8,
		DataStatus:           "streaming",
	}
	if f.catalog != nil {
		if m, ok := f.catalog.Lookup(symbol); ok {
			if m.Description != "" {
				info.Description = m.Description
			}
			if m.PriceScale > 0 {
				info.Pricescale = m.PriceScale
			}
		}
	}
	onResolve(info)
}

// GetBars loads history in the background and reports through exactly one
// of onResult and onError.
func (f *Feed) GetBars(info SymbolInfo, r Resolution, period PeriodParams, onResult func([]Bar, HistoryMetadata), onError func(reason string)) {
	symbol := symbolOf(info)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.opts.HistoryTimeout)
		defer cancel()

		res, err := f.fetcher.GetBars(ctx, symbol, r, period.From, period.To)
		if err != nil {
			f.logger.Warn("history request failed",
				zap.String("symbol", symbol),
				zap.String("resolution", string(r)),
				zap.Error(err),
			)
			onError(err.Error())
			return
		}
		onResult(res.Bars, HistoryMetadata{NoData: res.NoData})
	}()
}

// SubscribeBars starts streaming live bars to onTick. onResetCacheNeeded is
// accepted for interface compatibility; the engine never invalidates history.
func (f *Feed) SubscribeBars(info SymbolInfo, r Resolution, onTick func(Bar), listenerID string, onResetCacheNeeded func()) {
	f.engine.Subscribe(symbolOf(info), r, listenerID, onTick)
}

func (f *Feed) UnsubscribeBars(listenerID string) {
	f.engine.Unsubscribe(listenerID)
}

// UpdatePriceType switches between last and mark price for live bars.
func (f *Feed) UpdatePriceType(mode PriceMode) {
	f.engine.UpdatePriceType(mode)
}

func symbolOf(info SymbolInfo) string {
	if info.Ticker != "" {
		return info.Ticker
	}
	return info.Name
}
