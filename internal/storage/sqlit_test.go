package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitSchema(db))
	// second call is a no-op
	require.NoError(t, InitSchema(db))
	return NewStore(db)
}

func record(chatID int64, symbol string, created time.Time, seed *int64) RunRecord {
	return RunRecord{
		ChatID:      chatID,
		Symbol:      symbol,
		Amount:      decimal.RequireFromString("1000.50"),
		StartDate:   time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		HorizonDays: 365,
		Scenarios:   1000,
		Seed:        seed,
		FinalValue:  decimal.RequireFromString("2345.67"),
		MedianValue: decimal.RequireFromString("2500.1"),
		LowerValue:  decimal.RequireFromString("1800"),
		CreatedAt:   created,
	}
}

func TestStore_SaveAndRecentRuns(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := int64(-42)

	require.NoError(t, s.SaveRun(record(1, "AAPL", base, &seed)))
	require.NoError(t, s.SaveRun(record(1, "MSFT", base.Add(time.Minute), nil)))
	require.NoError(t, s.SaveRun(record(2, "TSLA", base.Add(2*time.Minute), nil)))

	runs, err := s.RecentRuns(1, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "MSFT", runs[0].Symbol)
	assert.Nil(t, runs[0].Seed)

	got := runs[1]
	assert.Equal(t, "AAPL", got.Symbol)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(-42), *got.Seed)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1000.5")))
	assert.True(t, got.FinalValue.Equal(decimal.RequireFromString("2345.67")))
	assert.Equal(t, "2019-01-01", got.StartDate.Format("2006-01-02"))
	assert.Equal(t, 365, got.HorizonDays)
	assert.True(t, got.CreatedAt.Equal(base))
}

func TestStore_RecentRunsLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRun(record(7, "SPY", base.Add(time.Duration(i)*time.Second), nil)))
	}

	runs, err := s.RecentRuns(7, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(4*time.Second)))
	assert.True(t, runs[2].CreatedAt.Equal(base.Add(2*time.Second)))
}

func TestStore_RecentRunsEmpty(t *testing.T) {
	runs, err := openTestStore(t).RecentRuns(99, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
