package models

import "time"

// ModelOutput is the raw two-element output of the policy network.
type ModelOutput struct {
	Action     float64 `json:"action"`
	Confidence float64 `json:"confidence"`
}

// TDQNDecision is the model decision as shown to clients.
type TDQNDecision struct {
	TargetPosition float64 `json:"target_position"`
	PositionChange float64 `json:"position_change"`
	Confidence     float64 `json:"confidence"`
}

// PositionState echoes the caller supplied position.
type PositionState struct {
	Position float64 `json:"position"`
}

// SignalRecord is the display form of a model decision relative to the current position.
type SignalRecord struct {
	Decision     TDQNDecision  `json:"tdqn_decision"`
	CurrentState PositionState `json:"current_state"`
}

// Timing holds stage latencies in milliseconds.
type Timing struct {
	FeatureCalculation float64 `json:"feature_calculation"`
	TensorConversion   float64 `json:"tensor_conversion"`
	ModelInference     float64 `json:"model_inference"`
	TotalTime          float64 `json:"total_time"`
}

// DateRange is an inclusive pair of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DataInfo describes the market data behind a real-time prediction.
type DataInfo struct {
	LastUpdate            string    `json:"last_update"`
	Interval              string    `json:"interval"`
	Symbol                string    `json:"symbol"`
	Source                string    `json:"source"`
	WindowSize            int       `json:"window_size"`
	TotalRecordsAvailable int       `json:"total_records_available"`
	DateRange             DateRange `json:"date_range"`
	TradingDaysFound      int       `json:"trading_days_found"`
	CalendarDaysSearched  int       `json:"calendar_days_searched"`
	PriceChangePercent    float64   `json:"price_change_percent"`
	CurrentPrice          float64   `json:"current_price"`
}

// PredictionResult is the full response of one prediction.
type PredictionResult struct {
	ID                 string             `json:"id"`
	Prediction         ModelOutput        `json:"prediction"`
	TradingSignal      SignalRecord       `json:"trading_signal"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	PerformanceTable   PerformanceTable   `json:"performance_table"`
	Timing             Timing             `json:"timing"`
	DataInfo           *DataInfo          `json:"data_info,omitempty"`
}

// PredictionRecord is the persisted/published summary of a prediction.
type PredictionRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	WindowSize    int       `json:"window_size"`
	Position      float64   `json:"position"`
	Action        float64   `json:"action"`
	Confidence    float64   `json:"confidence"`
	ProfitAndLoss int64     `json:"profit_and_loss"`
	SharpeRatio   float64   `json:"sharpe_ratio"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	TotalTimeMs   float64   `json:"total_time_ms"`
}

// BatchPrediction holds real-time predictions for several symbols. A symbol that failed
// appears in Errors instead of Results.
type BatchPrediction struct {
	Timestamp time.Time                    `json:"timestamp"`
	Results   map[string]*PredictionResult `json:"results"`
	Errors    map[string]string            `json:"errors,omitempty"`
}
