package market

import "time"

// RawRecord is a single asset entry as handed over by the upstream source.
// Every field is optional and may hold any JSON-decoded value (json.Number, string, float64, nil).
type RawRecord struct {
	ID               any `json:"id"`                 // CoinMarketCap asset id
	Name             any `json:"name"`               // e.g., "Bitcoin"
	Symbol           any `json:"symbol"`             // e.g., "BTC"
	Price            any `json:"price"`              // Price in the reporting currency
	MarketCap        any `json:"market_cap"`         // Market capitalization in the reporting currency
	PercentChange24h any `json:"percent_change_24h"` // 24h price change in percent (may be negative)
	Volume24h        any `json:"volume_24h"`         // 24h traded volume in the reporting currency
}

// CleanRecord is a RawRecord whose required fields were all present and coercible.
type CleanRecord struct {
	ID               int64
	Name             string
	Symbol           string
	Price            float64
	MarketCap        float64
	PercentChange24h float64
	Volume24h        float64
}

// CanonicalRecord is the final shape written to every sink.
type CanonicalRecord struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	MarketCap        float64   `json:"market_cap"`
	PercentChange24h float64   `json:"percent_change_24h"`
	Volume24h        float64   `json:"volume_24h"`
	Tier             Tier      `json:"tier"`
	CapturedAt       time.Time `json:"captured_at"`
}

// Batch is the set of canonical records produced by one pipeline run.
// All records share CapturedAt.
type Batch struct {
	CapturedAt time.Time
	Records    []CanonicalRecord
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}
