package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"aapl":     "AAPL",
		" msft ":   "MSFT",
		"BRK.A":    "BRK.A",
		"bf-b":     "BF-B",
		"^gspc":    "^GSPC",
		"EURUSD=X": "EURUSD=X",
	} {
		got, err := NormalizeSymbol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", `AAPL") |> drop()`, "-AAPL", "A B", "TOOLONGSYMBOLNAME1"} {
		_, err := NormalizeSymbol(in)
		assert.ErrorIs(t, err, ErrInputShape, in)
	}
}

func TestNormalizeSymbolOrEmpty(t *testing.T) {
	got, err := NormalizeSymbolOrEmpty("  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = NormalizeSymbolOrEmpty("nvda")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", got)

	_, err = NormalizeSymbolOrEmpty("A B")
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsClientError(&InputShapeError{Field: "close", Expected: 30, Actual: 10}))
	assert.True(t, IsClientError(&InsufficientDataError{Expected: 30, Actual: 0}))
	assert.True(t, IsClientError(&DataQualityError{Reason: "future dates"}))
	assert.False(t, IsClientError(assert.AnError))

	assert.Equal(t, "invalid input close: expected length 30, got 10",
		(&InputShapeError{Field: "close", Expected: 30, Actual: 10}).Error())
	assert.Equal(t, "not enough data points: expected 30, got 12",
		(&InsufficientDataError{Expected: 30, Actual: 12}).Error())
}

func TestPriceWindowTail(t *testing.T) {
	w := WindowFromCandles([]Candle{
		{Close: 1, Low: 0.5, High: 1.5, Volume: 10},
		{Close: 2, Low: 1.5, High: 2.5, Volume: 20},
		{Close: 3, Low: 2.5, High: 3.5, Volume: 30},
	})
	tail := w.Tail(2)
	assert.Equal(t, []float64{2, 3}, tail.Close)
	assert.Equal(t, []float64{20, 30}, tail.Volume)
	assert.Equal(t, 3, w.Tail(10).Len())
}
