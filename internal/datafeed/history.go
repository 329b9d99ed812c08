package datafeed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// HistoryLimit caps the number of candles requested per REST call.
const HistoryLimit = 1000

// KlineSource is the historical market-data endpoint.
type KlineSource interface {
	// GetKlines returns candles for [start, end] in whatever order upstream uses.
	GetKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]RawBar, error)
}

// HistoryResult is a finalized, ascending, gap-free bar list.
// NoData distinguishes a confirmed empty range from a failed request.
type HistoryResult struct {
	Bars   []Bar
	NoData bool
}

// FetchError reports a failed historical request.
type FetchError struct {
	Symbol     string
	Resolution Resolution
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %s bars for %s: %v", e.Resolution, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher resolves history requests into upstream calls and post-processes the result.
type Fetcher struct {
	source KlineSource
	logger *zap.Logger
	now    func() time.Time
}

// NewFetcher creates a Fetcher reading from source.
func NewFetcher(source KlineSource, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// GetBars loads bars for symbol at resolution r between from and to.
// A zero to means now; a zero from applies DefaultLookback(r).
func (f *Fetcher) GetBars(ctx context.Context, symbol string, r Resolution, from, to time.Time) (HistoryResult, error) {
	if to.IsZero() {
		to = f.now()
	}
	if from.IsZero() {
		from = to.Add(-DefaultLookback(r))
	}

	bars, err := f.fetch(ctx, symbol, r.IntervalCode(), from, to)
	if err != nil {
		return HistoryResult{}, &FetchError{Symbol: symbol, Resolution: r, Err: err}
	}

	// not every upstream serves week/month natively
	if len(bars) == 0 && r.IsCalendar() {
		f.logger.Debug("no native candles, aggregating daily",
			zap.String("symbol", symbol),
			zap.String("resolution", string(r)),
		)
		daily, err := f.fetch(ctx, symbol, ResolutionDaily.IntervalCode(), from, to)
		if err != nil {
			return HistoryResult{}, &FetchError{Symbol: symbol, Resolution: r, Err: err}
		}
		bars = Aggregate(daily, r)
	}

	bars = FillGaps(bars, r)

	return HistoryResult{Bars: bars, NoData: len(bars) == 0}, nil
}

// fetch calls upstream and returns validated bars sorted ascending with
// duplicate bucket times collapsed to the last one seen.
func (f *Fetcher) fetch(ctx context.Context, symbol, interval string, from, to time.Time) ([]Bar, error) {
	raw, err := f.source.GetKlines(ctx, symbol, interval, from, to, HistoryLimit)
	if err != nil {
		return nil, err
	}

	bars := ValidateBars(raw)
	if dropped := len(raw) - len(bars); dropped > 0 {
		f.logger.Debug("dropped invalid candles",
			zap.String("symbol", symbol),
			zap.String("interval", interval),
			zap.Int("dropped", dropped),
		)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })

	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time == b.Time {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
