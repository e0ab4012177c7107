package features

import (
	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/util"
)

// Normalize standardizes every column, sanitizes non-finite cells and packs the result
// to exactly models.FeatureVectorSize values.
func Normalize(m models.IndicatorMatrix) models.FeatureVector {
	std := Standardize(m)
	flat := std.Flatten()
	for i, v := range flat {
		flat[i] = util.SanitizeFinite(v)
	}
	return PackFixedWidth(flat, models.FeatureVectorSize)
}

// Standardize returns a copy of m where each column with positive population std is z-scored.
// Constant columns, and columns whose std is not a positive number, are copied unchanged.
func Standardize(m models.IndicatorMatrix) models.IndicatorMatrix {
	out := make(models.IndicatorMatrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	if len(m) == 0 {
		return out
	}
	for f := 0; f < len(m[0]); f++ {
		col := m.Column(f)
		sd := util.Std(col)
		if !(sd > 0) {
			continue
		}
		mean := util.Mean(col)
		// residual of the first mean; matters when the spread is tiny next to the level
		var shift float64
		for _, v := range col {
			shift += v - mean
		}
		shift /= float64(len(col))
		for i := range out {
			out[i][f] = ((out[i][f] - mean) - shift) / sd
		}
	}
	return out
}

// PackFixedWidth truncates or right-pads values with zeros to exactly width elements.
//
// With the default 30-row window the flattened matrix holds 420 values, so only the
// first 117 (roughly the first eight rows) reach the model.
func PackFixedWidth(values []float64, width int) models.FeatureVector {
	out := make(models.FeatureVector, width)
	copy(out, values)
	return out
}
