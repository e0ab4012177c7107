package models

import "fmt"

// PerformanceMetrics is the risk/return summary of a position series over a price series.
type PerformanceMetrics struct {
	ProfitAndLoss        int64   `json:"profit_and_loss"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxDrawdownDuration  int     `json:"max_drawdown_duration"`
	Profitability        float64 `json:"profitability"`
	ProfitLossRatio      float64 `json:"profit_loss_ratio"`
	Skewness             float64 `json:"skewness"`
}

// PerformanceTable is the two-column display form of PerformanceMetrics.
type PerformanceTable struct {
	Indicators []string `json:"Performance Indicator"`
	Values     []string `json:"TDQN"`
}

var performanceIndicators = []string{
	"Profit & Loss (P&L)",
	"Annualized Return",
	"Annualized Volatility",
	"Sharpe Ratio",
	"Sortino Ratio",
	"Maximum Drawdown",
	"Maximum Drawdown Duration",
	"Profitability",
	"Ratio Average Profit/Loss",
	"Skewness",
}

// Table renders the metrics for display.
func (m PerformanceMetrics) Table() PerformanceTable {
	names := make([]string, len(performanceIndicators))
	copy(names, performanceIndicators)
	return PerformanceTable{
		Indicators: names,
		Values: []string{
			fmt.Sprintf("%d", m.ProfitAndLoss),
			fmt.Sprintf("%.2f%%", m.AnnualizedReturn),
			fmt.Sprintf("%.2f%%", m.AnnualizedVolatility),
			fmt.Sprintf("%.3f", m.SharpeRatio),
			fmt.Sprintf("%.3f", m.SortinoRatio),
			fmt.Sprintf("%.2f%%", m.MaxDrawdown),
			fmt.Sprintf("%d days", m.MaxDrawdownDuration),
			fmt.Sprintf("%.2f%%", m.Profitability),
			fmt.Sprintf("%.3f", m.ProfitLossRatio),
			fmt.Sprintf("%.3f", m.Skewness),
		},
	}
}
