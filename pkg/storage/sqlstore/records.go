package sqlstore

import (
	"time"

	"cryptoetl/internal/crypto/market"
)

// CryptocurrencyRecord is the current state of one asset. One row per id, replaced on every load.
type CryptocurrencyRecord struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`

	Name   string `gorm:"type:text;not null" json:"name"`
	Symbol string `gorm:"type:text;not null;index:idx_cryptocurrencies_symbol" json:"symbol"`

	Price            float64 `gorm:"not null" json:"price"`
	MarketCap        float64 `gorm:"not null;index:idx_cryptocurrencies_market_cap" json:"market_cap"`
	PercentChange24h float64 `gorm:"column:percent_change_24h;not null" json:"percent_change_24h"`
	Volume24h        float64 `gorm:"column:volume_24h;not null" json:"volume_24h"`

	Tier       string    `gorm:"type:varchar(10);not null;index:idx_cryptocurrencies_tier" json:"tier"`
	CapturedAt time.Time `gorm:"not null" json:"captured_at"`
}

// TableName overrides the default table name for GORM.
func (CryptocurrencyRecord) TableName() string {
	return "cryptocurrencies"
}

// PriceHistoryRecord is one price observation. Rows are only ever appended.
// AssetID refers to CryptocurrencyRecord.ID without a foreign key.
type PriceHistoryRecord struct {
	HistoryID  uint64    `gorm:"column:history_id;primaryKey;autoIncrement" json:"history_id"`
	AssetID    int64     `gorm:"not null;index:idx_price_history_asset_captured" json:"asset_id"`
	Price      float64   `gorm:"not null" json:"price"`
	CapturedAt time.Time `gorm:"not null;index:idx_price_history_asset_captured;index:idx_price_history_captured" json:"captured_at"`
}

// TableName overrides the default table name for GORM.
func (PriceHistoryRecord) TableName() string {
	return "price_history"
}

// AssetView is the read projection served to the visualization layer.
type AssetView struct {
	ID               int64       `gorm:"column:id" json:"id"`
	Name             string      `gorm:"column:name" json:"name"`
	Symbol           string      `gorm:"column:symbol" json:"symbol"`
	Price            float64     `gorm:"column:price" json:"price"`
	MarketCap        float64     `gorm:"column:market_cap" json:"market_cap"`
	PercentChange24h float64     `gorm:"column:percent_change_24h" json:"percent_change_24h"`
	Volume24h        float64     `gorm:"column:volume_24h" json:"volume_24h"`
	Tier             market.Tier `gorm:"column:tier" json:"tier"`
}

// ToCurrentRecord converts a canonical record into its current-state row.
func ToCurrentRecord(r market.CanonicalRecord) CryptocurrencyRecord {
	return CryptocurrencyRecord{
		ID:               r.ID,
		Name:             r.Name,
		Symbol:           r.Symbol,
		Price:            r.Price,
		MarketCap:        r.MarketCap,
		PercentChange24h: r.PercentChange24h,
		Volume24h:        r.Volume24h,
		Tier:             string(r.Tier),
		CapturedAt:       r.CapturedAt,
	}
}

// ToHistoryRecord converts a canonical record into a history row stamped with the batch time.
func ToHistoryRecord(r market.CanonicalRecord, capturedAt time.Time) PriceHistoryRecord {
	return PriceHistoryRecord{
		AssetID:    r.ID,
		Price:      r.Price,
		CapturedAt: capturedAt,
	}
}
