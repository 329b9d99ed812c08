package postgres

import "time"

// SymbolRecord represents a catalog entry stored in the database.
type SymbolRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol      string `gorm:"type:text;not null;uniqueIndex:idx_symbol_record_symbol"`
	BaseCoin    string `gorm:"type:varchar(32);not null;default:''"`
	QuoteCoin   string `gorm:"type:varchar(32);not null;default:'';index:idx_symbol_record_quote"`
	Description string `gorm:"type:text;not null;default:''"`
	PriceScale  int    `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (SymbolRecord) TableName() string {
	return "symbol_record"
}
