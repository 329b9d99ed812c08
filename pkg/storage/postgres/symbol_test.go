package postgres_test

import (
	"context"
	"testing"

	"chartfeed/internal/datafeed"
	"chartfeed/pkg/storage/postgres"
)

// go test -v --run TestSymbolUpsertAndList
func TestSymbolUpsertAndList(t *testing.T) {
	client, err := postgres.NewClient(testDSN(t))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.AutoMigrateSymbolRecord(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		_ = client.DeleteSymbol(ctx, "ZZTESTUSDT")
	})

	// Create
	err = client.UpsertSymbols(ctx, []datafeed.SymbolMeta{
		{Symbol: "ZZTESTUSDT", BaseCoin: "ZZTEST", QuoteCoin: "USDT", Description: "ZZTEST / USDT", PriceScale: 100},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Update through conflict
	err = client.UpsertSymbols(ctx, []datafeed.SymbolMeta{
		{Symbol: "ZZTESTUSDT", BaseCoin: "ZZTEST", QuoteCoin: "USDT", Description: "ZZTEST / USDT", PriceScale: 1000},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := client.GetSymbol(ctx, "ZZTESTUSDT")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.PriceScale != 1000 {
		t.Errorf("expected updated price scale, got %+v", got)
	}

	all, err := client.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, s := range all {
		if s.Symbol == "ZZTESTUSDT" {
			found = true
		}
	}
	if !found {
		t.Error("expected ZZTESTUSDT in catalog")
	}

	// Delete
	if err := client.DeleteSymbol(ctx, "ZZTESTUSDT"); err != nil {
		t.Errorf("delete failed: %v", err)
	}
	if _, err := client.GetSymbol(ctx, "ZZTESTUSDT"); err == nil {
		t.Error("expected error after delete, got nil")
	}
}

// go test -v --run TestSymbolRecordConversion
func TestSymbolRecordConversion(t *testing.T) {
	meta := datafeed.SymbolMeta{Symbol: "BTCUSDT", BaseCoin: "BTC", QuoteCoin: "USDT", Description: "BTC / USDT", PriceScale: 10}
	if got := postgres.ToSymbolRecord(meta).ToSymbolMeta(); got != meta {
		t.Errorf("got %+v, want %+v", got, meta)
	}
}
