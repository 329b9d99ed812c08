package snapshot

import (
	"context"
	"errors"
	"testing"

	"chartfeed/internal/datafeed"
	"chartfeed/pkg/bybit"

	"go.uber.org/zap"
)

type fakeSource struct {
	instruments []bybit.Instrument
	err         error
}

func (f fakeSource) GetInstruments(context.Context) ([]bybit.Instrument, error) {
	return f.instruments, f.err
}

type fakeRepo struct {
	stored []datafeed.SymbolMeta
}

func (r *fakeRepo) UpsertSymbols(_ context.Context, symbols []datafeed.SymbolMeta) error {
	r.stored = append([]datafeed.SymbolMeta(nil), symbols...)
	return nil
}

func (r *fakeRepo) ListSymbols(context.Context) ([]datafeed.SymbolMeta, error) {
	return r.stored, nil
}

func instrument(symbol, base, status, tick string) bybit.Instrument {
	in := bybit.Instrument{Symbol: symbol, BaseCoin: base, QuoteCoin: "USDT", Status: status}
	in.PriceFilter.TickSize = tick
	return in
}

func drain(ch <-chan datafeed.SymbolMeta) []datafeed.SymbolMeta {
	var out []datafeed.SymbolMeta
	for m := range ch {
		out = append(out, m)
	}
	return out
}

// go test -v --run TestLoadSymbols
func TestLoadSymbols(t *testing.T) {
	repo := &fakeRepo{}
	loader := &SymbolLoader{
		Source: fakeSource{instruments: []bybit.Instrument{
			instrument("BTCUSDT", "BTC", "Trading", "0.10"),
			instrument("NEWUSDT", "NEW", "PreLaunch", "0.0001"),
		}},
		Repo:   repo,
		Logger: zap.NewNop(),
	}

	ch := make(chan datafeed.SymbolMeta, 10)
	if err := loader.LoadSymbols(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drain(ch)

	if len(got) != 1 || got[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbols: %+v", got)
	}
	if got[0].Description != "BTC / USDT" || got[0].PriceScale != 10 {
		t.Errorf("unexpected meta: %+v", got[0])
	}
	if len(repo.stored) != 1 {
		t.Errorf("expected catalog to be persisted, got %+v", repo.stored)
	}
}

// go test -v --run TestLoadSymbolsFallback
func TestLoadSymbolsFallback(t *testing.T) {
	repo := &fakeRepo{stored: []datafeed.SymbolMeta{{Symbol: "ETHUSDT"}}}
	loader := &SymbolLoader{
		Source: fakeSource{err: errors.New("connection refused")},
		Repo:   repo,
		Logger: zap.NewNop(),
	}

	ch := make(chan datafeed.SymbolMeta, 10)
	if err := loader.LoadSymbols(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(ch); len(got) != 1 || got[0].Symbol != "ETHUSDT" {
		t.Fatalf("expected stored catalog, got %+v", got)
	}
}

// go test -v --run TestLoadSymbolsNoRepo
func TestLoadSymbolsNoRepo(t *testing.T) {
	loader := &SymbolLoader{
		Source: fakeSource{err: errors.New("timeout")},
		Logger: zap.NewNop(),
	}

	ch := make(chan datafeed.SymbolMeta, 1)
	if err := loader.LoadSymbols(ch); err == nil {
		t.Fatal("expected error without fallback")
	}
	if _, open := <-ch; open {
		t.Error("expected channel to be closed")
	}
}
