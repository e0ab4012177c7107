package performance

import (
	"math"

	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/util"
)

const (
	DefaultInitialCapital = 100000.0
	DefaultPeriodsPerYear = 252.0
)

// Analyzer computes PerformanceMetrics for a position series applied to a price series.
// It holds only configuration and is safe for concurrent use.
type Analyzer struct {
	initialCapital float64
	periodsPerYear float64
}

type Option func(*Analyzer)

func WithInitialCapital(c float64) Option {
	return func(a *Analyzer) {
		if c > 0 {
			a.initialCapital = c
		}
	}
}

func WithPeriodsPerYear(n float64) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.periodsPerYear = n
		}
	}
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{initialCapital: DefaultInitialCapital, periodsPerYear: DefaultPeriodsPerYear}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var defaultAnalyzer = NewAnalyzer()

// ComputeMetrics analyzes with the default capital and annualization constant.
func ComputeMetrics(prices, positions []float64) models.PerformanceMetrics {
	return defaultAnalyzer.Analyze(prices, positions)
}

// Analyze never fails: mismatched or too short input yields zero metrics and degenerate
// statistics resolve to zero.
func (a *Analyzer) Analyze(prices, positions []float64) models.PerformanceMetrics {
	n := len(prices)
	if n < 2 || len(positions) != n {
		return models.PerformanceMetrics{}
	}

	sr := StrategyReturns(prices, positions)
	equity := Equity(sr)
	cr := equity[n-1] - 1

	mean := util.Mean(sr)
	sd := util.Std(sr)
	annFactor := math.Sqrt(a.periodsPerYear)

	var downside []float64
	for _, r := range sr {
		if r < 0 {
			downside = append(downside, r)
		}
	}

	dd, ddDuration := Drawdown(equity)

	m := models.PerformanceMetrics{
		ProfitAndLoss:        int64(math.Round(util.FiniteOr(a.initialCapital*cr, 0))),
		AnnualizedReturn:     (math.Pow(1+cr, a.periodsPerYear/float64(n)) - 1) * 100,
		AnnualizedVolatility: sd * annFactor * 100,
		SharpeRatio:          util.SafeDivide(mean, sd, 0) * annFactor,
		SortinoRatio:         util.SafeDivide(mean, util.Std(downside), 0) * annFactor,
		MaxDrawdown:          100 * math.Abs(dd),
		MaxDrawdownDuration:  ddDuration,
		Profitability:        Profitability(sr),
		ProfitLossRatio:      ProfitLossRatio(sr),
		Skewness:             Skewness(sr),
	}
	return sanitize(m)
}

// StrategyReturns applies positions elementwise to simple price returns; index 0 is always 0.
func StrategyReturns(prices, positions []float64) []float64 {
	sr := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		sr[i] = util.SafeDivide(prices[i]-prices[i-1], prices[i-1], 0) * positions[i]
	}
	return sr
}

// Equity returns the compounded growth factor 1+cr[i].
func Equity(sr []float64) []float64 {
	out := make([]float64, len(sr))
	acc := 1.0
	for i, r := range sr {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}

// Drawdown returns the deepest relative drawdown (<= 0) of an equity curve and the
// length of its longest contiguous underwater run.
func Drawdown(equity []float64) (float64, int) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	var worst float64
	var run, longest int
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		dd := util.SafeDivide(e-peak, peak, 0)
		if dd < worst {
			worst = dd
		}
		if dd < 0 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return worst, longest
}

// Profitability is the percentage of winning periods among periods with a nonzero return.
func Profitability(sr []float64) float64 {
	var wins, active float64
	for _, r := range sr {
		if r != 0 {
			active++
		}
		if r > 0 {
			wins++
		}
	}
	return util.SafeDivide(wins, active, 0) * 100
}

// ProfitLossRatio is mean gain over absolute mean loss; 0 when either side is empty.
func ProfitLossRatio(sr []float64) float64 {
	var gains, losses []float64
	for _, r := range sr {
		switch {
		case r > 0:
			gains = append(gains, r)
		case r < 0:
			losses = append(losses, r)
		}
	}
	if len(gains) == 0 || len(losses) == 0 {
		return 0
	}
	return util.SafeDivide(util.Mean(gains), math.Abs(util.Mean(losses)), 0)
}

// Skewness is the third standardized moment with population moments.
func Skewness(sr []float64) float64 {
	if len(sr) <= 2 {
		return 0
	}
	mean := util.Mean(sr)
	sd := util.Std(sr)
	if !(sd > 0) {
		return 0
	}
	var m3 float64
	for _, r := range sr {
		d := r - mean
		m3 += d * d * d
	}
	m3 /= float64(len(sr))
	return util.SafeDivide(m3, sd*sd*sd, 0)
}

func sanitize(m models.PerformanceMetrics) models.PerformanceMetrics {
	m.AnnualizedReturn = util.FiniteOr(m.AnnualizedReturn, 0)
	m.AnnualizedVolatility = util.FiniteOr(m.AnnualizedVolatility, 0)
	m.SharpeRatio = util.FiniteOr(m.SharpeRatio, 0)
	m.SortinoRatio = util.FiniteOr(m.SortinoRatio, 0)
	m.MaxDrawdown = util.FiniteOr(m.MaxDrawdown, 0)
	m.Profitability = util.FiniteOr(m.Profitability, 0)
	m.ProfitLossRatio = util.FiniteOr(m.ProfitLossRatio, 0)
	m.Skewness = util.FiniteOr(m.Skewness, 0)
	return m
}
