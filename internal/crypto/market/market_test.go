package market

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw(id int64) RawRecord {
	return RawRecord{
		ID:               json.Number(strconv.FormatInt(id, 10)),
		Name:             "Bitcoin",
		Symbol:           "BTC",
		Price:            json.Number("67000.12"),
		MarketCap:        json.Number("1320000000000"),
		PercentChange24h: json.Number("-1.25"),
		Volume24h:        json.Number("31000000000"),
	}
}

// go test -v --run TestClassifyBoundaries
func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		cap  float64
		want Tier
	}{
		{0, TierSmall},
		{999_999_999, TierSmall},
		{1_000_000_000, TierMedium},
		{9_999_999_999, TierMedium},
		{10_000_000_000, TierLarge},
		{99_999_999_999, TierLarge},
		{100_000_000_000, TierMega},
		{1e15, TierMega},
		{math.Inf(1), TierMega},
		{-5, TierSmall},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.cap), "market cap %v", tc.cap)
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("Large")
	require.NoError(t, err)
	assert.Equal(t, TierLarge, tier)

	_, err = ParseTier("large")
	assert.Error(t, err)
}

// go test -v --run TestCleanDropsInvalidRecords
func TestCleanDropsInvalidRecords(t *testing.T) {
	missingCap := validRaw(3)
	missingCap.MarketCap = nil

	badPrice := validRaw(4)
	badPrice.Price = "n/a"

	emptyName := validRaw(5)
	emptyName.Name = "   "

	fractionalID := validRaw(6)
	fractionalID.ID = 6.5

	negativeVolume := validRaw(7)
	negativeVolume.Volume24h = -1.0

	nanChange := validRaw(8)
	nanChange.PercentChange24h = math.NaN()

	boolSymbol := validRaw(9)
	boolSymbol.Symbol = true

	raw := []RawRecord{
		validRaw(1),
		missingCap,
		badPrice,
		emptyName,
		validRaw(2),
		fractionalID,
		negativeVolume,
		nanChange,
		boolSymbol,
	}

	got := Clean(raw)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestCleanPassesValidRecordsThrough(t *testing.T) {
	raw := RawRecord{
		ID:               float64(1027),
		Name:             " Ethereum ",
		Symbol:           "ETH",
		Price:            "3500.5",
		MarketCap:        int64(420_000_000_000),
		PercentChange24h: -3.2,
		Volume24h:        json.Number("15000000000"),
	}

	got := Clean([]RawRecord{raw})
	require.Len(t, got, 1)
	assert.Equal(t, CleanRecord{
		ID:               1027,
		Name:             "Ethereum",
		Symbol:           "ETH",
		Price:            3500.5,
		MarketCap:        420_000_000_000,
		PercentChange24h: -3.2,
		Volume24h:        15_000_000_000,
	}, got[0])

	// cleaning an already clean batch changes nothing
	again := Clean([]RawRecord{raw})
	assert.Equal(t, got, again)
}

func TestCleanEmptyInput(t *testing.T) {
	got := Clean(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCleanOneReportsField(t *testing.T) {
	r := validRaw(1)
	r.Volume24h = nil

	_, err := CleanOne(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volume_24h")
}

// go test -v --run TestTransformSharesTimestamp
func TestTransformSharesTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 10, 17, 14, 30, 5, 123456789, loc)

	cleaned := []CleanRecord{
		{ID: 1, Name: "Alpha", Symbol: "ALP", Price: 1, MarketCap: 5e8},
		{ID: 2, Name: "Beta", Symbol: "BET", Price: 2, MarketCap: 2e10},
	}

	batch := Transform(cleaned, ts)
	require.Equal(t, 2, batch.Len())

	want := time.Date(2026, 10, 17, 12, 30, 5, 123456000, time.UTC)
	assert.True(t, batch.CapturedAt.Equal(want))
	assert.Equal(t, time.UTC, batch.CapturedAt.Location())
	for _, r := range batch.Records {
		assert.Equal(t, batch.CapturedAt, r.CapturedAt)
	}
	assert.Equal(t, TierSmall, batch.Records[0].Tier)
	assert.Equal(t, TierLarge, batch.Records[1].Tier)
}
