package market

import "time"

// Transform turns cleaned records into a batch sharing one capture timestamp.
// The timestamp is normalized to UTC at microsecond precision so every sink stores the same instant.
func Transform(cleaned []CleanRecord, capturedAt time.Time) Batch {
	ts := NormalizeTimestamp(capturedAt)

	records := make([]CanonicalRecord, 0, len(cleaned))
	for _, c := range cleaned {
		records = append(records, CanonicalRecord{
			ID:               c.ID,
			Name:             c.Name,
			Symbol:           c.Symbol,
			Price:            c.Price,
			MarketCap:        c.MarketCap,
			PercentChange24h: c.PercentChange24h,
			Volume24h:        c.Volume24h,
			Tier:             Classify(c.MarketCap),
			CapturedAt:       ts,
		})
	}

	return Batch{CapturedAt: ts, Records: records}
}

// NormalizeTimestamp converts t to UTC and drops sub-microsecond precision.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
