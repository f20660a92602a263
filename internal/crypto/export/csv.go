package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"cryptoetl/internal/crypto/market"
)

// WriteCSV writes a header row followed by one line per record.
func WriteCSV(w io.Writer, records []market.CanonicalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			r.Symbol,
			formatFloat(r.Price),
			formatFloat(r.MarketCap),
			formatFloat(r.PercentChange24h),
			formatFloat(r.Volume24h),
			string(r.Tier),
			r.CapturedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]market.CanonicalRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Columns) {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}

	out := make([]market.CanonicalRecord, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string) (market.CanonicalRecord, error) {
	var (
		rec market.CanonicalRecord
		err error
	)
	if rec.ID, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return rec, fmt.Errorf("id: %w", err)
	}
	rec.Name = row[1]
	rec.Symbol = row[2]

	floats := []*float64{&rec.Price, &rec.MarketCap, &rec.PercentChange24h, &rec.Volume24h}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(row[3+i], 64); err != nil {
			return rec, fmt.Errorf("%s: %w", Columns[3+i], err)
		}
	}

	if rec.Tier, err = market.ParseTier(row[7]); err != nil {
		return rec, err
	}
	if rec.CapturedAt, err = time.Parse(time.RFC3339Nano, row[8]); err != nil {
		return rec, fmt.Errorf("captured_at: %w", err)
	}
	rec.CapturedAt = rec.CapturedAt.UTC()
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
