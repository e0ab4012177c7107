package models

import "time"

// Candle represents one OHLCV bar returned by a market-data source.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is a single trade or quote observation flowing through the ingest pipeline.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // unix seconds
	Price     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// PriceWindow is the raw input of the feature pipeline: four aligned series of equal length.
type PriceWindow struct {
	Close  []float64
	Low    []float64
	High   []float64
	Volume []float64
}

// Len returns the window length W (length of the close series).
func (w PriceWindow) Len() int { return len(w.Close) }

// Tail returns the last n rows of every series. n larger than the window returns the window unchanged.
func (w PriceWindow) Tail(n int) PriceWindow {
	if n >= w.Len() || n < 0 {
		return w
	}
	from := w.Len() - n
	return PriceWindow{
		Close:  w.Close[from:],
		Low:    w.Low[from:],
		High:   w.High[from:],
		Volume: w.Volume[from:],
	}
}

// WindowFromCandles builds a PriceWindow from ascending candles.
func WindowFromCandles(candles []Candle) PriceWindow {
	w := PriceWindow{
		Close:  make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		w.Close[i] = c.Close
		w.Low[i] = c.Low
		w.High[i] = c.High
		w.Volume[i] = c.Volume
	}
	return w
}
