package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoetl/config"
	"cryptoetl/internal/crypto/export"
	"cryptoetl/internal/crypto/market"
	"cryptoetl/internal/crypto/pipeline"
	"cryptoetl/internal/crypto/snapshot"
	"cryptoetl/pkg/storage/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var runAt = time.Date(2026, 10, 17, 12, 30, 45, 123456789, time.UTC)

func fixedClock() time.Time { return runAt }

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "etl.db"),
	}, "dev", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func raw(id int, marketCap any) market.RawRecord {
	return market.RawRecord{
		ID:               id,
		Name:             "Asset",
		Symbol:           "AST",
		Price:            1.5,
		MarketCap:        marketCap,
		PercentChange24h: 0.25,
		Volume24h:        10.0,
	}
}

// go test -v --run TestRunEndToEnd
func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	outDir := filepath.Join(t.TempDir(), "exports")

	orch := pipeline.New(pipeline.Options{
		Store:     store,
		Exporter:  export.NewExporter(zaptest.NewLogger(t)),
		OutputDir: outDir,
		Clock:     fixedClock,
		Logger:    zaptest.NewLogger(t),
	})

	report, err := orch.Run(ctx, snapshot.ExtractResult{Records: []market.RawRecord{
		raw(1, 5e8),
		raw(2, 2e10),
		raw(3, nil),
	}})
	require.NoError(t, err)

	assert.Equal(t, pipeline.Done, report.State)
	assert.Equal(t, []pipeline.State{
		pipeline.Idle, pipeline.Cleaned, pipeline.Transformed,
		pipeline.Persisted, pipeline.Exported, pipeline.Done,
	}, report.Trail)
	assert.Equal(t, 3, report.Raw)
	assert.Equal(t, 2, report.Clean)
	assert.Equal(t, 2, report.Loaded)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, market.NormalizeTimestamp(runAt), report.CapturedAt)

	views, err := store.ListCurrent(ctx, sqlstore.ListQuery{OrderBy: "id", Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, market.TierSmall, views[0].Tier)
	assert.Equal(t, market.TierLarge, views[1].Tier)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlstore.Stats{Assets: 2, Observations: 2}, stats)

	require.NotNil(t, report.Files)
	fromCSV, fromColumnar, err := export.ReadFiles(*report.Files)
	require.NoError(t, err)
	assert.Len(t, fromCSV, 2)
	assert.Equal(t, fromCSV, fromColumnar)
}

type failingStore struct {
	err   error
	loads int
}

func (s *failingStore) EnsureSchema(context.Context) error { return nil }

func (s *failingStore) Load(context.Context, market.Batch) error {
	s.loads++
	return s.err
}

type countingExporter struct {
	calls int
	err   error
}

func (e *countingExporter) Export(batch market.Batch, outputDir string) (*export.Files, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &export.Files{CSV: "a.csv", Columnar: "a.msgpack", Records: batch.Len()}, nil
}

func TestRunStoreFailureSkipsExport(t *testing.T) {
	boom := errors.New("disk full")
	store := &failingStore{err: boom}
	exporter := &countingExporter{}

	report, err := pipeline.New(pipeline.Options{Store: store, Exporter: exporter, Clock: fixedClock}).
		Run(context.Background(), snapshot.ExtractResult{Records: []market.RawRecord{raw(1, 5e8)}})

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, pipeline.StagePersist, stageErr.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, pipeline.Failed, report.State)
	assert.Equal(t, 0, exporter.calls)
	assert.Equal(t, 0, report.Loaded)
}

// go test -v --run TestRunExportFailureKeepsStoreWrites
func TestRunExportFailureKeepsStoreWrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	report, err := pipeline.New(pipeline.Options{
		Store:     store,
		Exporter:  export.NewExporter(nil),
		OutputDir: blocker,
		Clock:     fixedClock,
	}).Run(ctx, snapshot.ExtractResult{Records: []market.RawRecord{raw(1, 5e8), raw(2, 2e10)}})

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, pipeline.StageExport, stageErr.Stage)

	var exportErr *export.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, blocker, exportErr.Path)

	assert.Equal(t, pipeline.Failed, report.State)
	assert.Contains(t, report.Trail, pipeline.Persisted)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Assets)
}

func TestRunExtractionFailureIsEmptyBatch(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	outDir := t.TempDir()

	report, err := pipeline.New(pipeline.Options{
		Store:     store,
		Exporter:  export.NewExporter(nil),
		OutputDir: outDir,
		Clock:     fixedClock,
	}).Run(ctx, snapshot.ExtractResult{Err: errors.New("timeout")})
	require.NoError(t, err)

	assert.True(t, report.ExtractionFailed)
	assert.Equal(t, pipeline.Done, report.State)
	assert.Equal(t, 0, report.Loaded)

	assert.True(t, store.DB.Migrator().HasTable("cryptocurrencies"))
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlstore.Stats{}, stats)

	require.NotNil(t, report.Files)
	assert.Equal(t, 0, report.Files.Records)
	_, err = os.Stat(report.Files.CSV)
	assert.NoError(t, err)
}

type stubExtractor struct{ res snapshot.ExtractResult }

func (s stubExtractor) Extract(context.Context) snapshot.ExtractResult { return s.res }

type recordingInvalidator struct{ calls int }

func (r *recordingInvalidator) Invalidate(context.Context) error {
	r.calls++
	return errors.New("redis down")
}

func TestRunOnceInvalidatesCache(t *testing.T) {
	inv := &recordingInvalidator{}
	report, err := pipeline.New(pipeline.Options{
		Store:       &failingStore{},
		Exporter:    &countingExporter{},
		Extractor:   stubExtractor{res: snapshot.ExtractResult{Records: []market.RawRecord{raw(7, 2e11)}}},
		Invalidator: inv,
	}).RunOnce(context.Background())

	require.NoError(t, err, "invalidation errors do not fail the run")
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, 1, report.Loaded)
}

func TestRunIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newStore(t)
	report, err := pipeline.New(pipeline.Options{
		Store:     store,
		Exporter:  export.NewExporter(nil),
		OutputDir: t.TempDir(),
		Clock:     fixedClock,
	}).Run(ctx, snapshot.ExtractResult{Records: []market.RawRecord{raw(1, 5e8)}})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Done, report.State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "persisted", pipeline.Persisted.String())
	assert.Equal(t, "state(42)", pipeline.State(42).String())
}
