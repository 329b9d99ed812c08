package snapshot

import (
	"context"
	"fmt"
	"time"

	"chartfeed/internal/datafeed"
	"chartfeed/pkg/bybit"

	"go.uber.org/zap"
)

// InstrumentSource lists upstream instruments.
type InstrumentSource interface {
	GetInstruments(ctx context.Context) ([]bybit.Instrument, error)
}

// SymbolRepository persists the catalog so it survives an unreachable upstream.
type SymbolRepository interface {
	UpsertSymbols(ctx context.Context, symbols []datafeed.SymbolMeta) error
	ListSymbols(ctx context.Context) ([]datafeed.SymbolMeta, error)
}

type SymbolLoader struct {
	Source  InstrumentSource
	Repo    SymbolRepository // optional
	Timeout time.Duration
	Logger  *zap.Logger
}

// LoadSymbols fetches trading instruments from Bybit and streams them into
// the provided channel. When the upstream call fails it falls back to the
// persisted catalog. The channel is closed on return.
func (l *SymbolLoader) LoadSymbols(ch chan<- datafeed.SymbolMeta) error {
	defer close(ch) // Ensure downstream consumers can exit cleanly

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	symbols, err := l.fetch(ctx)
	if err != nil {
		l.Logger.Warn("failed to load instruments, using stored catalog", zap.Error(err))
		if l.Repo == nil {
			return err
		}
		symbols, err = l.Repo.ListSymbols(ctx)
		if err != nil {
			return fmt.Errorf("list stored symbols: %w", err)
		}
	} else if l.Repo != nil {
		if err := l.Repo.UpsertSymbols(ctx, symbols); err != nil {
			l.Logger.Warn("failed to persist symbol catalog", zap.Error(err))
		}
	}
	l.Logger.Info("loaded symbols", zap.Int("count", len(symbols)))

	for _, symbol := range symbols {
		select {
		case ch <- symbol:
		case <-ctx.Done():
			l.Logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return nil
}

func (l *SymbolLoader) fetch(ctx context.Context) ([]datafeed.SymbolMeta, error) {
	instruments, err := l.Source.GetInstruments(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]datafeed.SymbolMeta, 0, len(instruments))
	for _, in := range instruments {
		if in.Status != "" && in.Status != "Trading" {
			continue
		}
		out = append(out, ToSymbolMeta(in))
	}
	return out, nil
}

// ToSymbolMeta converts an instrument into a catalog entry.
func ToSymbolMeta(in bybit.Instrument) datafeed.SymbolMeta {
	desc := in.Symbol
	if in.BaseCoin != "" && in.QuoteCoin != "" {
		desc = fmt.Sprintf("%s / %s", in.BaseCoin, in.QuoteCoin)
	}
	return datafeed.SymbolMeta{
		Symbol:      in.Symbol,
		BaseCoin:    in.BaseCoin,
		QuoteCoin:   in.QuoteCoin,
		Description: desc,
		PriceScale:  bybit.PriceScale(in.PriceFilter.TickSize),
	}
}
