package inference

import (
	"context"
	"fmt"
	"math"

	"TradeSignal/internal/domain/models"
	domsvc "TradeSignal/internal/domain/service"
	"TradeSignal/pkg/config"
)

// MLPInferencer evaluates the policy network in process.
// Hidden layers are Linear -> BatchNorm (running statistics) -> ReLU; dropout is the identity at inference.
// The network does not take the position as input. Weights are read only after construction,
// so one instance serves concurrent requests.
type MLPInferencer struct {
	layers []denseLayer
}

type denseLayer struct {
	weight [][]float64
	bias   []float64
	// folded batch norm: y = x*scale + shift
	scale []float64
	shift []float64
}

func NewMLPInferencer(cfg *config.Config) (*MLPInferencer, error) {
	w, err := LoadWeightsFile(cfg.Model.WeightsPath)
	if err != nil {
		return nil, err
	}
	return NewMLPFromWeights(w)
}

// NewMLPFromWeights builds the network from validated weights.
func NewMLPFromWeights(w *Weights) (*MLPInferencer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	m := &MLPInferencer{layers: make([]denseLayer, len(w.Layers))}
	for i, l := range w.Layers {
		d := denseLayer{weight: l.Weight, bias: l.Bias}
		if bn := l.BatchNorm; bn != nil {
			d.scale = make([]float64, len(l.Bias))
			d.shift = make([]float64, len(l.Bias))
			for j := range d.scale {
				d.scale[j] = bn.Gamma[j] / math.Sqrt(bn.RunningVar[j]+bn.Eps)
				d.shift[j] = bn.Beta[j] - bn.RunningMean[j]*d.scale[j]
			}
		}
		m.layers[i] = d
	}
	return m, nil
}

func (m *MLPInferencer) Infer(ctx context.Context, features models.FeatureVector, _ float64) (models.ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return models.ModelOutput{}, err
	}
	if len(features) != models.FeatureVectorSize {
		return models.ModelOutput{}, fmt.Errorf("model inference: expected %d features, got %d", models.FeatureVectorSize, len(features))
	}
	x := []float64(features)
	for _, l := range m.layers {
		x = l.forward(x)
	}
	return models.ModelOutput{Action: x[0], Confidence: x[1]}, nil
}

func (l denseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(l.weight))
	for o, row := range l.weight {
		s := l.bias[o]
		for i, w := range row {
			s += w * x[i]
		}
		if l.scale != nil {
			s = s*l.scale[o] + l.shift[o]
			if s < 0 {
				s = 0
			}
		}
		out[o] = s
	}
	return out
}

var _ domsvc.Inferencer = (*MLPInferencer)(nil)
