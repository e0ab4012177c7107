package features

import (
	"math"
	"testing"

	"TradeSignal/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampWindow(n int, start float64) models.PriceWindow {
	w := models.PriceWindow{
		Close:  make([]float64, n),
		Low:    make([]float64, n),
		High:   make([]float64, n),
		Volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p := start + float64(i)
		w.Close[i] = p
		w.Low[i] = p - 0.5
		w.High[i] = p + 0.5
		w.Volume[i] = 1000 + 10*float64(i%7)
	}
	return w
}

func constWindow(n int, price float64) models.PriceWindow {
	w := models.PriceWindow{
		Close:  make([]float64, n),
		Low:    make([]float64, n),
		High:   make([]float64, n),
		Volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		w.Close[i], w.Low[i], w.High[i], w.Volume[i] = price, price, price, 500
	}
	return w
}

func TestRelative(t *testing.T) {
	got := Relative([]float64{100, 110, 90})
	assert.InDelta(t, 0.0, got[0], 1e-12)
	assert.InDelta(t, 0.1, got[1], 1e-12)
	assert.InDelta(t, -0.1, got[2], 1e-12)

	zero := Relative([]float64{0, 1})
	assert.True(t, math.IsNaN(zero[0]))
	assert.True(t, math.IsInf(zero[1], 1))
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	require.Len(t, got, 3)
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 0.1, got[1], 1e-12)
	assert.InDelta(t, -0.1, got[2], 1e-12)
}

func TestRSI(t *testing.T) {
	flat := RSI([]float64{5, 5, 5, 5, 5, 5}, 14)
	for i, v := range flat {
		assert.Equal(t, 0.0, v, "flat series index %d", i)
	}

	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
	}
	for i, v := range RSI(up, 14) {
		assert.Greater(t, v, 99.99, "rising series index %d", i)
		assert.LessOrEqual(t, v, 100.0)
	}

	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(200 - i)
	}
	for i, v := range RSI(down, 14) {
		assert.InDelta(t, 0.0, v, 1e-9, "falling series index %d", i)
	}
}

func TestRSIUsesSameLengthAverage(t *testing.T) {
	// single +2 move at index 1, single -1 move at index 3
	closes := []float64{10, 12, 12, 11, 11}
	got := RSI(closes, 14)
	// kernel offset 6 means every index sees the whole 5-sample series
	avgGain := 2.0 / 14
	avgLoss := 1.0 / 14
	want := 100 - 100/(1+avgGain/avgLoss)
	for i := range got {
		assert.InDelta(t, want, got[i], 1e-9, "index %d", i)
	}
}

func TestMomentum(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5, 6}
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 5, 5}, Momentum(xs, 5))
	assert.Equal(t, make([]float64, 7), Momentum(xs, 10))
}

func TestTailVolatility(t *testing.T) {
	assert.InDelta(t, 0.0, TailVolatility([]float64{0, 0.5, 0.1, 0.1, 0.1, 0.1, 0.1}, 5), 1e-12)
	// fewer than five returns uses all of them
	assert.InDelta(t, 1.0, TailVolatility([]float64{-1, 1}, 5), 1e-12)
}

func TestExtractShapeAndChannels(t *testing.T) {
	w := rampWindow(30, 100)
	m := Extract(w)
	require.Equal(t, 30, m.Rows())
	for _, row := range m {
		require.Len(t, row, models.NumChannels)
	}

	assert.Equal(t, 0.0, m[0][models.ChanRelClose])
	assert.InDelta(t, 29.0/100, m[29][models.ChanRelClose], 1e-12)
	assert.Equal(t, 0.0, m[0][models.ChanReturns])
	assert.InDelta(t, 1.0/100, m[1][models.ChanReturns], 1e-12)
	assert.Equal(t, 0.0, m[4][models.ChanMomentum5])
	assert.InDelta(t, 5.0/100, m[5][models.ChanMomentum5], 1e-12)
	assert.Equal(t, 0.0, m[9][models.ChanMomentum10])
	assert.InDelta(t, 10.0/100, m[10][models.ChanMomentum10], 1e-12)

	// RSI stored on a 0..1 scale
	assert.Greater(t, m[15][models.ChanRSI], 0.99)
	assert.LessOrEqual(t, m[15][models.ChanRSI], 1.0)

	// volatility is broadcast
	vol := m[0][models.ChanVolatility]
	for i := range m {
		assert.Equal(t, vol, m[i][models.ChanVolatility])
	}
}

func TestExtractConstantSeries(t *testing.T) {
	m := Extract(constWindow(30, 100))
	for i, row := range m {
		for f, v := range row {
			assert.Equal(t, 0.0, v, "row %d channel %s", i, models.ChannelNames[f])
		}
	}
}

func TestExtractZeroBaseDoesNotPanic(t *testing.T) {
	w := rampWindow(10, 0)
	w.Volume[0] = 0
	m := Extract(w)
	assert.True(t, math.IsNaN(m[0][models.ChanRelClose]))
	assert.True(t, math.IsInf(m[1][models.ChanRelClose], 1))
	assert.True(t, math.IsInf(m[1][models.ChanReturns], 1))
}
