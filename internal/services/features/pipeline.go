package features

import (
	"fmt"

	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/util"
)

// BuildFeatureVector validates the window and runs Extract then Normalize.
func BuildFeatureVector(w models.PriceWindow) (models.FeatureVector, error) {
	if err := ValidateWindow(w); err != nil {
		return nil, err
	}
	return Normalize(Extract(w)), nil
}

// ValidateWindow checks that all four series have the same non-zero length and hold
// finite, non-negative values.
func ValidateWindow(w models.PriceWindow) error {
	n := w.Len()
	if n == 0 {
		return &models.InputShapeError{Field: "close", Expected: 1, Actual: 0, Reason: "window must contain at least one row"}
	}
	series := []struct {
		name string
		vals []float64
	}{
		{"close", w.Close},
		{"low", w.Low},
		{"high", w.High},
		{"volume", w.Volume},
	}
	for _, s := range series {
		if len(s.vals) != n {
			return &models.InputShapeError{Field: s.name, Expected: n, Actual: len(s.vals)}
		}
	}
	for _, s := range series {
		for i, v := range s.vals {
			if !util.IsFinite(v) || v < 0 {
				return &models.InputShapeError{
					Field:  s.name,
					Reason: fmt.Sprintf("%s[%d]=%v must be finite and non-negative", s.name, i, v),
				}
			}
		}
	}
	return nil
}
