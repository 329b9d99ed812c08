package postgres

import (
	"context"
	"fmt"

	"chartfeed/internal/datafeed"

	"gorm.io/gorm/clause"
)

// UpsertSymbols inserts the catalog, updating entries whose symbol already exists.
func (p *PostgresClient) UpsertSymbols(ctx context.Context, symbols []datafeed.SymbolMeta) error {
	if len(symbols) == 0 {
		return nil
	}

	records := make([]SymbolRecord, 0, len(symbols))
	for _, s := range symbols {
		records = append(records, ToSymbolRecord(s))
	}

	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_coin", "quote_coin", "description", "price_scale", "updated_at"}),
	}).CreateInBatches(&records, 500)

	if tx.Error != nil {
		return fmt.Errorf("upsert symbols: %w", tx.Error)
	}
	return nil
}

// ListSymbols returns the stored catalog ordered by symbol.
func (p *PostgresClient) ListSymbols(ctx context.Context) ([]datafeed.SymbolMeta, error) {
	var records []SymbolRecord
	if err := p.DB.WithContext(ctx).Order("symbol").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	out := make([]datafeed.SymbolMeta, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToSymbolMeta())
	}
	return out, nil
}

func (p *PostgresClient) GetSymbol(ctx context.Context, symbol string) (*SymbolRecord, error) {
	var record SymbolRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&record).Error

	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (p *PostgresClient) DeleteSymbol(ctx context.Context, symbol string) error {
	return p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Delete(&SymbolRecord{}).Error
}

// ToSymbolRecord converts a catalog entry into a row for DB insertion.
func ToSymbolRecord(s datafeed.SymbolMeta) SymbolRecord {
	return SymbolRecord{
		Symbol:      s.Symbol,
		BaseCoin:    s.BaseCoin,
		QuoteCoin:   s.QuoteCoin,
		Description: s.Description,
		PriceScale:  s.PriceScale,
	}
}

func (r SymbolRecord) ToSymbolMeta() datafeed.SymbolMeta {
	return datafeed.SymbolMeta{
		Symbol:      r.Symbol,
		BaseCoin:    r.BaseCoin,
		QuoteCoin:   r.QuoteCoin,
		Description: r.Description,
		PriceScale:  r.PriceScale,
	}
}
