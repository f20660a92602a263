package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"cryptoetl/internal/crypto/market"

	"gorm.io/gorm/clause"
)

// orderColumns whitelists the columns a caller may order the projection by.
var orderColumns = map[string]bool{
	"id":                 true,
	"name":               true,
	"symbol":             true,
	"price":              true,
	"market_cap":         true,
	"percent_change_24h": true,
	"volume_24h":         true,
	"tier":               true,
}

// ListQuery selects and orders the current-state projection.
type ListQuery struct {
	OrderBy   string      // column name, defaults to market_cap
	Direction string      // "asc" or "desc", defaults to desc
	Limit     int         // 0 means no limit
	Tier      market.Tier // optional filter
}

// Normalize fills defaults and validates the query.
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.OrderBy == "" {
		q.OrderBy = "market_cap"
	}
	if !orderColumns[q.OrderBy] {
		return q, fmt.Errorf("unsupported order column: %q", q.OrderBy)
	}

	q.Direction = strings.ToLower(q.Direction)
	switch q.Direction {
	case "":
		q.Direction = "desc"
	case "asc", "desc":
	default:
		return q, fmt.Errorf("unsupported order direction: %q", q.Direction)
	}

	if q.Limit < 0 {
		return q, fmt.Errorf("limit must not be negative, got %d", q.Limit)
	}
	if q.Tier != "" && !q.Tier.Valid() {
		return q, fmt.Errorf("invalid tier: %q", q.Tier)
	}
	return q, nil
}

// ListCurrent returns the read projection of the current-state table.
func (s *Store) ListCurrent(ctx context.Context, q ListQuery) ([]AssetView, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	tx := s.DB.WithContext(ctx).
		Model(&CryptocurrencyRecord{}).
		Select("id", "name", "symbol", "price", "market_cap", "percent_change_24h", "volume_24h", "tier").
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Direction == "desc"}).
		Order("id ASC")
	if q.Tier != "" {
		tx = tx.Where("tier = ?", string(q.Tier))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	views := make([]AssetView, 0)
	if err := tx.Find(&views).Error; err != nil {
		return nil, fmt.Errorf("list current state: %w", err)
	}
	return views, nil
}

// GetCurrent returns the current-state row of one asset.
func (s *Store) GetCurrent(ctx context.Context, id int64) (*CryptocurrencyRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var rec CryptocurrencyRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// PriceHistory returns the observations of one asset, newest first.
func (s *Store) PriceHistory(ctx context.Context, assetID int64, limit int) ([]PriceHistoryRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	tx := s.DB.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("captured_at DESC").
		Order("history_id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	rows := make([]PriceHistoryRecord, 0)
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get price history: %w", err)
	}
	return rows, nil
}

// Stats holds row counts of both tables.
type Stats struct {
	Assets       int64 `json:"assets"`
	Observations int64 `json:"observations"`
}

// Stats counts the rows of both tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s.closed.Load() {
		return Stats{}, ErrClosed
	}
	var st Stats
	if err := s.DB.WithContext(ctx).Model(&CryptocurrencyRecord{}).Count(&st.Assets).Error; err != nil {
		return Stats{}, fmt.Errorf("count current state: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(&PriceHistoryRecord{}).Count(&st.Observations).Error; err != nil {
		return Stats{}, fmt.Errorf("count price history: %w", err)
	}
	return st, nil
}
