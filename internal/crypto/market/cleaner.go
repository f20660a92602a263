package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errMissing = errors.New("missing value")

// Clean keeps the records whose required fields are all present and coercible
// and drops the rest. Surviving records keep their input order.
func Clean(raw []RawRecord) []CleanRecord {
	out := make([]CleanRecord, 0, len(raw))
	for _, r := range raw {
		rec, err := CleanOne(r)
		if err != nil {
			continue // skip malformed record
		}
		out = append(out, rec)
	}
	return out
}

// CleanOne coerces a single record, returning the first field that failed.
func CleanOne(r RawRecord) (CleanRecord, error) {
	id, err := toID(r.ID)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("id: %w", err)
	}
	name, err := toText(r.Name)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("name: %w", err)
	}
	symbol, err := toText(r.Symbol)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("symbol: %w", err)
	}
	price, err := toNonNegative(r.Price)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("price: %w", err)
	}
	marketCap, err := toNonNegative(r.MarketCap)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("market_cap: %w", err)
	}
	change, err := toFloat(r.PercentChange24h)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("percent_change_24h: %w", err)
	}
	volume, err := toNonNegative(r.Volume24h)
	if err != nil {
		return CleanRecord{}, fmt.Errorf("volume_24h: %w", err)
	}

	return CleanRecord{
		ID:               id,
		Name:             name,
		Symbol:           symbol,
		Price:            price,
		MarketCap:        marketCap,
		PercentChange24h: change,
		Volume24h:        volume,
	}, nil
}

func toText(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return "", errMissing
		}
		return "", fmt.Errorf("expected text, got %T", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errMissing
	}
	return s, nil
}

func toID(v any) (int64, error) {
	if n, ok := v.(json.Number); ok {
		if id, err := n.Int64(); err == nil {
			return id, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

func toNonNegative(v any) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value: %v", f)
	}
	return f, nil
}

// toFloat accepts the numeric shapes a JSON decoder or a hand-built record may carry.
func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, errMissing
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errMissing
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value: %v", f)
	}
	return f, nil
}
