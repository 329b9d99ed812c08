package datafeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type klineCall struct {
	symbol   string
	interval string
	start    time.Time
	end      time.Time
	limit    int
}

// fakeSource answers GetKlines from a per-interval table.
type fakeSource struct {
	mu    sync.Mutex
	bars  map[string][]RawBar
	err   error
	calls []klineCall
}

func (s *fakeSource) GetKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]RawBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, klineCall{symbol, interval, start, end, limit})
	if s.err != nil {
		return nil, s.err
	}
	return append([]RawBar(nil), s.bars[interval]...), nil
}

func newTestFetcher(src KlineSource, now time.Time) *Fetcher {
	f := NewFetcher(src, zap.NewNop())
	f.now = func() time.Time { return now }
	return f
}

// go test -v --run TestFetcherDefaultRange
func TestFetcherDefaultRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{bars: map[string][]RawBar{}}
	f := newTestFetcher(src, now)

	if _, err := f.GetBars(context.Background(), "BTCUSDT", Resolution60Min, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	if len(src.calls) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", len(src.calls))
	}
	c := src.calls[0]
	if c.interval != "60" || c.symbol != "BTCUSDT" || c.limit != HistoryLimit {
		t.Errorf("unexpected call: %+v", c)
	}
	if !c.end.Equal(now) || !c.start.Equal(now.Add(-180*24*time.Hour)) {
		t.Errorf("unexpected range: %s - %s", c.start, c.end)
	}
}

// go test -v --run TestFetcherSortsAndFills
func TestFetcherSortsAndFills(t *testing.T) {
	minute := Duration(Resolution1Min)
	src := &fakeSource{bars: map[string][]RawBar{
		"1": {
			// newest first, like Bybit
			{Time: 5 * minute, Open: 5, High: 5, Low: 5, Close: 5, Volume: 1},
			{Time: 3 * minute, Open: 0, High: 3, Low: 3, Close: 3, Volume: 1}, // invalid open
			{Time: 2 * minute, Open: 2, High: 2, Low: 2, Close: 2, Volume: 1},
			{Time: 2 * minute, Open: 2, High: 2.5, Low: 2, Close: 2.5, Volume: 2}, // duplicate bucket
		},
	}}
	f := newTestFetcher(src, time.UnixMilli(10*minute))

	res, err := f.GetBars(context.Background(), "ETHUSDT", Resolution1Min, time.UnixMilli(0), time.UnixMilli(10*minute))
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if res.NoData {
		t.Fatal("expected data")
	}

	wantTimes := []int64{2 * minute, 3 * minute, 4 * minute, 5 * minute}
	if len(res.Bars) != len(wantTimes) {
		t.Fatalf("expected %d bars, got %d: %+v", len(wantTimes), len(res.Bars), res.Bars)
	}
	for i, b := range res.Bars {
		if b.Time != wantTimes[i] {
			t.Errorf("bar %d: time %d, want %d", i, b.Time, wantTimes[i])
		}
	}
	if res.Bars[0].Close != 2.5 {
		t.Errorf("later duplicate should win, got close %v", res.Bars[0].Close)
	}
	// the rejected bar's bucket is synthesized
	if res.Bars[1].Volume != 0 {
		t.Errorf("bucket 3 should be synthetic, got %+v", res.Bars[1])
	}
}

// go test -v --run TestFetcherWeeklyFallback
func TestFetcherWeeklyFallback(t *testing.T) {
	var daily []RawBar
	for _, b := range dailyBars(ms(2024, 1, 1, 0, 0), 14) {
		daily = append(daily, RawBar(b))
	}
	src := &fakeSource{bars: map[string][]RawBar{"D": daily}}
	f := newTestFetcher(src, time.UnixMilli(ms(2024, 1, 15, 0, 0)))

	res, err := f.GetBars(context.Background(), "BTCUSDT", ResolutionWeekly, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if len(src.calls) != 2 || src.calls[0].interval != "W" || src.calls[1].interval != "D" {
		t.Fatalf("expected W then D calls, got %+v", src.calls)
	}
	if len(res.Bars) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(res.Bars))
	}
	if res.Bars[0].Time != ms(2024, 1, 1, 0, 0) || res.Bars[1].Time != ms(2024, 1, 8, 0, 0) {
		t.Errorf("unexpected weekly buckets: %+v", res.Bars)
	}
}

// go test -v --run TestFetcherNoData
func TestFetcherNoData(t *testing.T) {
	src := &fakeSource{bars: map[string][]RawBar{}}
	f := newTestFetcher(src, time.Now())

	res, err := f.GetBars(context.Background(), "NEWUSDT", Resolution5Min, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if !res.NoData || len(res.Bars) != 0 {
		t.Errorf("expected no data, got %+v", res)
	}
}

// go test -v --run TestFetcherError
func TestFetcherError(t *testing.T) {
	upstream := errors.New("connection reset")
	src := &fakeSource{err: upstream}
	f := newTestFetcher(src, time.Now())

	_, err := f.GetBars(context.Background(), "BTCUSDT", Resolution15Min, time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("expected error")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Symbol != "BTCUSDT" || fe.Resolution != Resolution15Min {
		t.Errorf("unexpected error fields: %+v", fe)
	}
	if !errors.Is(err, upstream) {
		t.Error("upstream error should be wrapped")
	}
}
