package signal

import (
	"fmt"
	"math"

	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/util"
)

const (
	displayPlaces = 3

	// MinConfidence replaces a zero confidence reported alongside a non-trivial action.
	MinConfidence      = 0.1
	confidenceFloorEps = 0.001
)

// Interpret formats a model decision relative to the current position.
// It makes no trading decision of its own: position change is action minus current position
// and every value is rounded to three decimals for display.
func Interpret(action, confidence, currentPosition float64) (models.SignalRecord, error) {
	for _, in := range []struct {
		name string
		v    float64
	}{
		{"action", action},
		{"confidence", confidence},
		{"position", currentPosition},
	} {
		if !util.IsFinite(in.v) {
			return models.SignalRecord{}, &models.InputShapeError{
				Field:  in.name,
				Reason: fmt.Sprintf("%s must be finite, got %v", in.name, in.v),
			}
		}
	}
	return models.SignalRecord{
		Decision: models.TDQNDecision{
			TargetPosition: round3(action),
			PositionChange: round3(action - currentPosition),
			Confidence:     round3(confidence),
		},
		CurrentState: models.PositionState{Position: round3(currentPosition)},
	}, nil
}

// FormatSignal is the pipeline entry point for Interpret.
func FormatSignal(action, confidence, currentPosition float64) (models.SignalRecord, error) {
	return Interpret(action, confidence, currentPosition)
}

// ClipModelOutput bounds raw model output to action in [-1,1] and confidence in [0,1],
// then substitutes MinConfidence when confidence is zero but the action is not.
// NaN action or confidence collapses to 0.
func ClipModelOutput(action, confidence float64) (float64, float64) {
	action = clip(action, -1, 1)
	confidence = clip(confidence, 0, 1)
	if confidence == 0 && math.Abs(action) > confidenceFloorEps {
		confidence = MinConfidence
	}
	return action, confidence
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func round3(v float64) float64 {
	return util.RoundTo(v, displayPlaces)
}
