package features

import (
	"math"

	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/util"
)

const (
	rsiPeriod      = 14
	rsiEpsilon     = 1e-10
	volatilityTail = 5
	shortSMA       = 5
	mediumSMA      = 10
	longSMA        = 20
	shortMomentum  = 5
	longMomentum   = 10
)

// Extract derives the W x 14 indicator matrix from a price window.
// Degenerate inputs (a zero first price, a zero previous close) produce ±Inf/NaN cells;
// they are cleaned up by Normalize, not reported here.
func Extract(w models.PriceWindow) models.IndicatorMatrix {
	n := w.Len()

	relClose := Relative(w.Close)
	relLow := Relative(w.Low)
	relHigh := Relative(w.High)
	relVolume := Relative(w.Volume)
	returns := Returns(w.Close)

	sma5 := MovingAverageSame(relClose, shortSMA)
	sma10 := MovingAverageSame(relClose, mediumSMA)
	sma20 := MovingAverageSame(relClose, longSMA)
	rsi := RSI(w.Close, rsiPeriod)

	mom5 := Momentum(relClose, shortMomentum)
	mom10 := Momentum(relClose, longMomentum)
	volMom5 := Momentum(relVolume, shortMomentum)
	volMom10 := Momentum(relVolume, longMomentum)

	vol := TailVolatility(returns, volatilityTail)

	m := make(models.IndicatorMatrix, n)
	for i := 0; i < n; i++ {
		row := make([]float64, models.NumChannels)
		row[models.ChanRelClose] = relClose[i]
		row[models.ChanRelLow] = relLow[i]
		row[models.ChanRelHigh] = relHigh[i]
		row[models.ChanRelVolume] = relVolume[i]
		row[models.ChanReturns] = returns[i]
		row[models.ChanSMA5] = sma5[i]
		row[models.ChanSMA10] = sma10[i]
		row[models.ChanSMA20] = sma20[i]
		row[models.ChanRSI] = rsi[i] / 100
		row[models.ChanMomentum5] = mom5[i]
		row[models.ChanMomentum10] = mom10[i]
		row[models.ChanVolumeMomentum5] = volMom5[i]
		row[models.ChanVolumeMomentum10] = volMom10[i]
		row[models.ChanVolatility] = vol
		m[i] = row
	}
	return m
}

// Relative returns (x[i]-x[0])/x[0].
func Relative(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	base := xs[0]
	for i, x := range xs {
		out[i] = (x - base) / base
	}
	return out
}

// Returns computes simple returns with a leading zero.
func Returns(close []float64) []float64 {
	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		out[i] = (close[i] - close[i-1]) / close[i-1]
	}
	return out
}

// RSI computes the relative strength index on a 0..100 scale.
// Average gain and loss are MovingAverageSame over the period, not Wilder smoothing.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	gain := make([]float64, n)
	loss := make([]float64, n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gain[i] = d
		} else if d < 0 {
			loss[i] = -d
		}
	}
	avgGain := MovingAverageSame(gain, period)
	avgLoss := MovingAverageSame(loss, period)

	out := make([]float64, n)
	for i := range out {
		rs := avgGain[i] / math.Max(avgLoss[i], rsiEpsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// Momentum returns x[i]-x[i-k], with the first k entries (all entries if k >= len(x)) set to zero.
func Momentum(xs []float64, k int) []float64 {
	out := make([]float64, len(xs))
	for i := k; i < len(xs); i++ {
		out[i] = xs[i] - xs[i-k]
	}
	return out
}

// TailVolatility is the population standard deviation of the last n returns.
func TailVolatility(returns []float64, n int) float64 {
	if len(returns) > n {
		returns = returns[len(returns)-n:]
	}
	return util.Std(returns)
}
