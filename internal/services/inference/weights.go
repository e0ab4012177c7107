package inference

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"TradeSignal/internal/domain/models"
)

// Weights is the on-disk form of the policy network, exported from the trained model.
//
//	{"layers":[{"weight":[[...]], "bias":[...], "batch_norm":{"gamma":[...], "beta":[...],
//	  "running_mean":[...], "running_var":[...], "eps":1e-5}}, ...]}
//
// weight is [out][in]. Every layer except the last carries batch_norm.
type Weights struct {
	Layers []LayerWeights `json:"layers"`
}

type LayerWeights struct {
	Weight    [][]float64 `json:"weight"`
	Bias      []float64   `json:"bias"`
	BatchNorm *BatchNorm  `json:"batch_norm,omitempty"`
}

type BatchNorm struct {
	Gamma       []float64 `json:"gamma"`
	Beta        []float64 `json:"beta"`
	RunningMean []float64 `json:"running_mean"`
	RunningVar  []float64 `json:"running_var"`
	Eps         float64   `json:"eps"`
}

const defaultBatchNormEps = 1e-5

// LoadWeightsFile reads and validates a weights file.
func LoadWeightsFile(path string) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer f.Close()
	return DecodeWeights(f)
}

// DecodeWeights parses weights JSON and checks layer shapes.
func DecodeWeights(r io.Reader) (*Weights, error) {
	var w Weights
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks that layers chain from FeatureVectorSize inputs to two outputs.
// A missing batch norm eps is set to the PyTorch default.
func (w *Weights) Validate() error {
	if len(w.Layers) == 0 {
		return fmt.Errorf("weights: no layers")
	}
	in := models.FeatureVectorSize
	for i, l := range w.Layers {
		out := len(l.Weight)
		if out == 0 {
			return fmt.Errorf("weights: layer %d has no rows", i)
		}
		for r, row := range l.Weight {
			if len(row) != in {
				return fmt.Errorf("weights: layer %d row %d has %d inputs, expected %d", i, r, len(row), in)
			}
		}
		if len(l.Bias) != out {
			return fmt.Errorf("weights: layer %d bias has %d values, expected %d", i, len(l.Bias), out)
		}
		last := i == len(w.Layers)-1
		switch {
		case last && l.BatchNorm != nil:
			return fmt.Errorf("weights: output layer must not carry batch_norm")
		case !last && l.BatchNorm == nil:
			return fmt.Errorf("weights: hidden layer %d is missing batch_norm", i)
		case !last:
			bn := l.BatchNorm
			for name, v := range map[string][]float64{
				"gamma": bn.Gamma, "beta": bn.Beta, "running_mean": bn.RunningMean, "running_var": bn.RunningVar,
			} {
				if len(v) != out {
					return fmt.Errorf("weights: layer %d batch_norm.%s has %d values, expected %d", i, name, len(v), out)
				}
			}
			if bn.Eps <= 0 {
				bn.Eps = defaultBatchNormEps
			}
		}
		in = out
	}
	if in != 2 {
		return fmt.Errorf("weights: output layer has %d units, expected 2", in)
	}
	return nil
}
