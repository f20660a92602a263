package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptoetl/internal/crypto/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	records []market.RawRecord
	err     error

	start, limit int
	convert      string
	deadline     bool
}

func (f *fakeSource) GetListingsLatest(ctx context.Context, start, limit int, convert string) ([]market.RawRecord, error) {
	f.start, f.limit, f.convert = start, limit, convert
	_, f.deadline = ctx.Deadline()
	return f.records, f.err
}

func TestExtract(t *testing.T) {
	src := &fakeSource{records: []market.RawRecord{{ID: 1, Name: "Bitcoin"}, {ID: 2}}}
	ex := &Extractor{Source: src, Limit: 50, Convert: "EUR", Timeout: time.Second, Logger: zaptest.NewLogger(t)}

	res := ex.Extract(context.Background())
	require.False(t, res.Failed())
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 1, src.start)
	assert.Equal(t, 50, src.limit)
	assert.Equal(t, "EUR", src.convert)
	assert.True(t, src.deadline)
}

func TestExtractFailure(t *testing.T) {
	boom := errors.New("upstream unavailable")
	ex := &Extractor{Source: &fakeSource{err: boom}}

	res := ex.Extract(context.Background())
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Records)
}
