package service

import (
	"context"

	"TradeSignal/internal/domain/models"
)

// Inferencer evaluates the policy network on a feature vector.
// Implementations return the raw network output; clipping is the caller's job.
type Inferencer interface {
	Infer(ctx context.Context, features models.FeatureVector, position float64) (models.ModelOutput, error)
}
