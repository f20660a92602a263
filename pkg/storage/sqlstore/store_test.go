package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cryptoetl/config"
	"cryptoetl/internal/crypto/market"
	"cryptoetl/pkg/storage/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	cfg := config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "etl.db"),
	}
	store, err := sqlstore.Open(cfg, "dev", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func record(id int64, price, marketCap float64) market.CleanRecord {
	return market.CleanRecord{
		ID:               id,
		Name:             "Asset",
		Symbol:           "AST",
		Price:            price,
		MarketCap:        marketCap,
		PercentChange24h: -0.5,
		Volume24h:        1000,
	}
}

func batchAt(ts time.Time, records ...market.CleanRecord) market.Batch {
	return market.Transform(records, ts)
}

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

// go test -v --run TestEnsureSchemaIdempotent
func TestEnsureSchemaIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	assert.True(t, store.DB.Migrator().HasTable("cryptocurrencies"))
	assert.True(t, store.DB.Migrator().HasTable("price_history"))
}

// go test -v --run TestLoadUpsertIsLastWriteWins
func TestLoadUpsertIsLastWriteWins(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, batchAt(t0, record(1, 100, 5e8))))
	require.NoError(t, store.Load(ctx, batchAt(t0.Add(time.Minute), record(1, 120, 2e9))))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Assets)
	assert.Equal(t, int64(2), stats.Observations)

	got, err := store.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Price)
	assert.Equal(t, string(market.TierMedium), got.Tier)
	assert.WithinDuration(t, t0.Add(time.Minute), got.CapturedAt, time.Millisecond)

	history, err := store.PriceHistory(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 120.0, history[0].Price) // newest first
	assert.Equal(t, 100.0, history[1].Price)
	assert.Greater(t, history[0].HistoryID, history[1].HistoryID)
}

func TestLoadKeepsUnseenAssets(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, batchAt(t0, record(1, 10, 1), record(2, 20, 2))))
	require.NoError(t, store.Load(ctx, batchAt(t0.Add(time.Hour), record(2, 21, 2), record(3, 30, 3))))

	views, err := store.ListCurrent(ctx, sqlstore.ListQuery{OrderBy: "id", Direction: "asc"})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, 10.0, views[0].Price)
	assert.Equal(t, 21.0, views[1].Price)
	assert.Equal(t, 30.0, views[2].Price)
}

func TestLoadDuplicateIDsInOneBatch(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, batchAt(t0, record(5, 1, 1), record(5, 2, 1))))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Assets)
	assert.Equal(t, int64(2), stats.Observations)

	got, err := store.GetCurrent(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Price)
}

// go test -v --run TestLoadRollsBackOnHistoryFailure
func TestLoadRollsBackOnHistoryFailure(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, batchAt(t0, record(1, 100, 5e8))))

	errForced := errors.New("forced history failure")
	err := store.DB.Callback().Create().Before("gorm:create").Register("test:fail_price_history", func(tx *gorm.DB) {
		if tx.Statement.Table == "price_history" {
			_ = tx.AddError(errForced)
		}
	})
	require.NoError(t, err)

	err = store.Load(ctx, batchAt(t0.Add(time.Minute), record(1, 200, 5e8), record(2, 50, 2e10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, errForced)

	got, err := store.GetCurrent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Price, "upsert must not survive a failed history append")

	_, err = store.GetCurrent(ctx, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Assets)
	assert.Equal(t, int64(1), stats.Observations)
}

func TestLoadEmptyBatch(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, market.Batch{CapturedAt: t0}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Assets)
	assert.Zero(t, stats.Observations)
}

func TestUpsertAndAppendSeparately(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	batch := batchAt(t0, record(1, 10, 1), record(2, 20, 2))

	require.NoError(t, store.UpsertCurrent(ctx, batch))
	require.NoError(t, store.AppendHistory(ctx, batch))
	require.NoError(t, store.AppendHistory(ctx, batch))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Assets)
	assert.Equal(t, int64(4), stats.Observations)
}

// go test -v --run TestListCurrentOrderingAndFilter
func TestListCurrentOrderingAndFilter(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Load(ctx, batchAt(t0,
		record(1, 1, 5e8),
		record(2, 2, 2e10),
		record(3, 3, 3e11),
		record(4, 4, 4e10),
	)))

	views, err := store.ListCurrent(ctx, sqlstore.ListQuery{})
	require.NoError(t, err)
	require.Len(t, views, 4)
	assert.Equal(t, []int64{3, 4, 2, 1}, ids(views))
	assert.Equal(t, market.TierMega, views[0].Tier)
	assert.Equal(t, -0.5, views[0].PercentChange24h)

	views, err = store.ListCurrent(ctx, sqlstore.ListQuery{Tier: market.TierLarge})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, ids(views))

	views, err = store.ListCurrent(ctx, sqlstore.ListQuery{OrderBy: "price", Direction: "ASC", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(views))

	_, err = store.ListCurrent(ctx, sqlstore.ListQuery{OrderBy: "price; DROP TABLE cryptocurrencies"})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.False(t, store.IsHealthy(ctx))
	assert.ErrorIs(t, store.Load(ctx, batchAt(t0, record(1, 1, 1))), sqlstore.ErrClosed)
	_, err := store.ListCurrent(ctx, sqlstore.ListQuery{})
	assert.ErrorIs(t, err, sqlstore.ErrClosed)
}

func TestSQLState(t *testing.T) {
	assert.Empty(t, sqlstore.SQLState(errors.New("plain")))
}

func ids(views []sqlstore.AssetView) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}
