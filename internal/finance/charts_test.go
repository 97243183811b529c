package finance

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegramBotForecast/internal/simulation"
)

var pngMagic = []byte("\x89PNG")

func testSeries(t *testing.T, closes ...float64) simulation.PriceSeries {
	t.Helper()
	points := make([]simulation.PricePoint, len(closes))
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		points[i] = simulation.PricePoint{Date: day.AddDate(0, 0, i), Close: c}
	}
	s, err := simulation.NewPriceSeries(points)
	require.NoError(t, err)
	return s
}

func TestHistoryChart(t *testing.T) {
	hist, err := simulation.Valuate(testSeries(t, 100, 105, 102, 108),
		simulation.InvestmentParameters{InitialAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	img, err := HistoryChart("aapl", hist)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestHistoryChart_TooShort(t *testing.T) {
	hist, err := simulation.Valuate(testSeries(t, 100),
		simulation.InvestmentParameters{InitialAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	_, err = HistoryChart("aapl", hist)
	assert.Error(t, err)
}

func TestProjectionChart(t *testing.T) {
	seed := int64(3)
	proj, err := simulation.NewEngine(nil).Project(simulation.Request{
		Series:       testSeries(t, 100, 101, 99, 103, 104, 102),
		Investment:   simulation.InvestmentParameters{InitialAmount: decimal.NewFromInt(500)},
		Config:       simulation.Config{HorizonDays: 20, ScenarioCount: 40, Seed: &seed},
		DisplayCount: 5,
	})
	require.NoError(t, err)

	img, err := ProjectionChart("msft", proj)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestProjectionChart_NilProjection(t *testing.T) {
	_, err := ProjectionChart("msft", nil)
	assert.Error(t, err)
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([]float64{100, 120}, []float64{110, 80})
	assert.InDelta(t, 78, lo, 1e-9)
	assert.InDelta(t, 122, hi, 1e-9)

	// Flat series still get a visible band.
	lo, hi = paddedRange([]float64{50, 50})
	assert.Less(t, lo, 50.0)
	assert.Greater(t, hi, 50.0)

	// Never below zero.
	lo, _ = paddedRange([]float64{0.1, 10})
	assert.Equal(t, 0.0, lo)
}
