package symbolmeta

import (
	"context"
	"time"

	"chartfeed/internal/bybit/snapshot"
	"chartfeed/internal/datafeed"

	"go.uber.org/zap"
)

type MidnightLoader struct {
	Load func() <-chan datafeed.SymbolMeta
}

func DefaultLoadFn(loader *snapshot.SymbolLoader) func() <-chan datafeed.SymbolMeta {
	return func() <-chan datafeed.SymbolMeta {
		symbolCh := make(chan datafeed.SymbolMeta, 100)

		go func() {
			if err := loader.LoadSymbols(symbolCh); err != nil {
				loader.Logger.Error("failed to load symbols", zap.Error(err))
			}
		}()

		return symbolCh
	}
}

// Start runs the load function once immediately, then at every UTC midnight until ctx is done.
func (m *MidnightLoader) Start(ctx context.Context, proc func(<-chan datafeed.SymbolMeta)) {
	go func() {
		// Run immediately once at startup
		m.runOnce(proc)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(UntilNextMidnight(time.Now())):
				m.runOnce(proc)
			}
		}
	}()
}

// UntilNextMidnight returns the time left until the next 00:00 UTC.
func UntilNextMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now)
}

func (m *MidnightLoader) runOnce(proc func(<-chan datafeed.SymbolMeta)) {
	symbolCh := m.Load()
	proc(symbolCh)
}
