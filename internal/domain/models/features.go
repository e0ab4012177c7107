package models

// FeatureVectorSize is the fixed input width of the model interface.
const FeatureVectorSize = 117

// Indicator channel order inside an IndicatorMatrix row.
const (
	ChanRelClose = iota
	ChanRelLow
	ChanRelHigh
	ChanRelVolume
	ChanReturns
	ChanSMA5
	ChanSMA10
	ChanSMA20
	ChanRSI
	ChanMomentum5
	ChanMomentum10
	ChanVolumeMomentum5
	ChanVolumeMomentum10
	ChanVolatility

	NumChannels
)

// ChannelNames lists channel labels in column order.
var ChannelNames = [NumChannels]string{
	"rel_close", "rel_low", "rel_high", "rel_volume", "returns",
	"sma5", "sma10", "sma20", "rsi",
	"momentum5", "momentum10", "volume_momentum5", "volume_momentum10",
	"volatility",
}

// IndicatorMatrix holds W rows of NumChannels indicator values.
type IndicatorMatrix [][]float64

// Rows returns W.
func (m IndicatorMatrix) Rows() int { return len(m) }

// Column copies column f out of the matrix.
func (m IndicatorMatrix) Column(f int) []float64 {
	col := make([]float64, len(m))
	for i, row := range m {
		col[i] = row[f]
	}
	return col
}

// Flatten returns the row-major concatenation of all rows.
func (m IndicatorMatrix) Flatten() []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, 0, len(m)*len(m[0]))
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// FeatureVector is the normalized, fixed-width model input.
type FeatureVector []float64
