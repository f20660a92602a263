package export

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"time"

	"cryptoetl/internal/crypto/market"

	"github.com/vmihailenco/msgpack/v5"
)

const columnarVersion = 1

// columnarSnapshot stores one array per column; index i of every array is row i.
type columnarSnapshot struct {
	Version    int      `msgpack:"version"`
	Schema     []string `msgpack:"schema"`
	Rows       int      `msgpack:"rows"`
	CapturedAt int64    `msgpack:"captured_at"` // batch time, unix microseconds

	ID               []int64   `msgpack:"id"`
	Name             []string  `msgpack:"name"`
	Symbol           []string  `msgpack:"symbol"`
	Price            []float64 `msgpack:"price"`
	MarketCap        []float64 `msgpack:"market_cap"`
	PercentChange24h []float64 `msgpack:"percent_change_24h"`
	Volume24h        []float64 `msgpack:"volume_24h"`
	Tier             []string  `msgpack:"tier"`
	RowCapturedAt    []int64   `msgpack:"row_captured_at"` // unix microseconds
}

// WriteColumnar encodes the batch as a msgpack columnar document.
func WriteColumnar(w io.Writer, batch market.Batch) error {
	n := batch.Len()
	snap := columnarSnapshot{
		Version:          columnarVersion,
		Schema:           Columns,
		Rows:             n,
		CapturedAt:       batch.CapturedAt.UnixMicro(),
		ID:               make([]int64, 0, n),
		Name:             make([]string, 0, n),
		Symbol:           make([]string, 0, n),
		Price:            make([]float64, 0, n),
		MarketCap:        make([]float64, 0, n),
		PercentChange24h: make([]float64, 0, n),
		Volume24h:        make([]float64, 0, n),
		Tier:             make([]string, 0, n),
		RowCapturedAt:    make([]int64, 0, n),
	}
	for _, r := range batch.Records {
		snap.ID = append(snap.ID, r.ID)
		snap.Name = append(snap.Name, r.Name)
		snap.Symbol = append(snap.Symbol, r.Symbol)
		snap.Price = append(snap.Price, r.Price)
		snap.MarketCap = append(snap.MarketCap, r.MarketCap)
		snap.PercentChange24h = append(snap.PercentChange24h, r.PercentChange24h)
		snap.Volume24h = append(snap.Volume24h, r.Volume24h)
		snap.Tier = append(snap.Tier, string(r.Tier))
		snap.RowCapturedAt = append(snap.RowCapturedAt, r.CapturedAt.UnixMicro())
	}

	bw := bufio.NewWriter(w)
	if err := msgpack.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("encode columnar snapshot: %w", err)
	}
	return bw.Flush()
}

// ReadColumnar decodes a document written by WriteColumnar back into a batch.
func ReadColumnar(r io.Reader) (market.Batch, error) {
	var snap columnarSnapshot
	if err := msgpack.NewDecoder(bufio.NewReader(r)).Decode(&snap); err != nil {
		return market.Batch{}, fmt.Errorf("decode columnar snapshot: %w", err)
	}
	if snap.Version != columnarVersion {
		return market.Batch{}, fmt.Errorf("unsupported columnar version %d", snap.Version)
	}
	if !slices.Equal(snap.Schema, Columns) {
		return market.Batch{}, fmt.Errorf("unexpected schema: %v", snap.Schema)
	}
	for name, l := range map[string]int{
		"id": len(snap.ID), "name": len(snap.Name), "symbol": len(snap.Symbol),
		"price": len(snap.Price), "market_cap": len(snap.MarketCap),
		"percent_change_24h": len(snap.PercentChange24h), "volume_24h": len(snap.Volume24h),
		"tier": len(snap.Tier), "captured_at": len(snap.RowCapturedAt),
	} {
		if l != snap.Rows {
			return market.Batch{}, fmt.Errorf("column %s has %d values, want %d", name, l, snap.Rows)
		}
	}

	batch := market.Batch{
		CapturedAt: time.UnixMicro(snap.CapturedAt).UTC(),
		Records:    make([]market.CanonicalRecord, 0, snap.Rows),
	}
	for i := 0; i < snap.Rows; i++ {
		tier, err := market.ParseTier(snap.Tier[i])
		if err != nil {
			return market.Batch{}, fmt.Errorf("row %d: %w", i, err)
		}
		batch.Records = append(batch.Records, market.CanonicalRecord{
			ID:               snap.ID[i],
			Name:             snap.Name[i],
			Symbol:           snap.Symbol[i],
			Price:            snap.Price[i],
			MarketCap:        snap.MarketCap[i],
			PercentChange24h: snap.PercentChange24h[i],
			Volume24h:        snap.Volume24h[i],
			Tier:             tier,
			CapturedAt:       time.UnixMicro(snap.RowCapturedAt[i]).UTC(),
		})
	}
	return batch, nil
}
