package snapshot

import (
	"context"
	"time"

	"cryptoetl/internal/crypto/market"

	"go.uber.org/zap"
)

// ListingSource is the upstream market data API.
type ListingSource interface {
	GetListingsLatest(ctx context.Context, start, limit int, convert string) ([]market.RawRecord, error)
}

// ExtractResult carries the raw records of one extraction, or the reason there are none.
type ExtractResult struct {
	Records []market.RawRecord
	Err     error
}

// Failed reports whether the extraction produced no usable response.
func (r ExtractResult) Failed() bool {
	return r.Err != nil
}

type Extractor struct {
	Source  ListingSource
	Limit   int
	Convert string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Extract fetches the latest listings from the source.
// It never panics on upstream failure; the error is returned inside the result.
func (e *Extractor) Extract(ctx context.Context) ExtractResult {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	records, err := e.Source.GetListingsLatest(ctx, 1, e.Limit, e.Convert)
	if err != nil {
		log.Error("failed to load latest listings", zap.Error(err))
		return ExtractResult{Err: err}
	}
	log.Info("loaded listings", zap.Int("count", len(records)))

	return ExtractResult{Records: records}
}
