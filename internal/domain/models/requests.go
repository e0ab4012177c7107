package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Close      []float64 `json:"close" validate:"required,min=1,dive,gte=0"`
	Low        []float64 `json:"low" validate:"required,min=1,dive,gte=0"`
	High       []float64 `json:"high" validate:"required,min=1,dive,gte=0"`
	Volume     []float64 `json:"volume" validate:"required,min=1,dive,gte=0"`
	Position   float64   `json:"position" validate:"gte=-1,lte=1"`
	WindowSize int       `json:"window_size" default:"30" validate:"gte=1,lte=5000"`
	Symbol     string    `json:"symbol" validate:"omitempty,max=16"`
}

// Window returns the request arrays as a PriceWindow.
func (r *PredictRequest) Window() PriceWindow {
	return PriceWindow{Close: r.Close, Low: r.Low, High: r.High, Volume: r.Volume}
}

// RealtimeRequest is the query of GET /real_time_prediction. Empty symbol and window size take the configured defaults.
type RealtimeRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"omitempty,max=16"`
	WindowSize int    `query:"window_size" json:"window_size" validate:"omitempty,gte=1,lte=1000"`
	Interval   string `query:"interval" json:"interval" default:"1d" validate:"oneof=1d 1h"`
	AsOf       string `query:"as_of" json:"as_of"`
}

// PredictionHistoryRequest is the query of GET /api/predictions. An empty symbol lists all symbols.
type PredictionHistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,max=16"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// BatchRealtimeRequest is the query of GET /api/signals.
type BatchRealtimeRequest struct {
	Symbols    string `query:"symbols" json:"symbols" validate:"required,max=200"` // comma separated
	WindowSize int    `query:"window_size" json:"window_size" validate:"omitempty,gte=1,lte=1000"`
	Interval   string `query:"interval" json:"interval" default:"1d" validate:"oneof=1d 1h"`
	AsOf       string `query:"as_of" json:"as_of"`
}

// CandlesRequest is the query of GET /api/candles.
type CandlesRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,max=16"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1m 1h 1d"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Limit    int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
