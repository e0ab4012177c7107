package inference

import (
	"context"
	"fmt"
	"time"

	"TradeSignal/internal/domain/models"
	domsvc "TradeSignal/internal/domain/service"
	"TradeSignal/pkg/config"
	xhttp "TradeSignal/pkg/http"
)

const (
	inferPath    = "/infer"
	inferTimeout = 3 * time.Second
	inferBackoff = 50 * time.Millisecond
)

// HTTPInferencer calls an external model service: POST /infer {"features","position"} -> {"output":[action, confidence]}.
// Transient failures are retried model.retries times.
type HTTPInferencer struct {
	client *xhttp.Client
}

func NewHTTPInferencer(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPInferencer {
	timeout := cfg.Model.Timeout
	if timeout <= 0 {
		timeout = inferTimeout
	}
	opts = append([]xhttp.ClientOption{
		xhttp.WithBaseURL(cfg.Model.ServiceURL),
		xhttp.WithTimeout(timeout),
		xhttp.WithRetry(cfg.Model.Retries+1, inferBackoff),
	}, opts...)
	return &HTTPInferencer{client: xhttp.NewClient(opts...)}
}

type inferRequest struct {
	Features []float64 `json:"features"`
	Position float64   `json:"position"`
}

type inferResponse struct {
	Output []float64 `json:"output"`
}

func (m *HTTPInferencer) Infer(ctx context.Context, features models.FeatureVector, position float64) (models.ModelOutput, error) {
	var resp inferResponse
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    inferPath,
		Body:   inferRequest{Features: features, Position: position},
	}, &resp)
	if err != nil {
		return models.ModelOutput{}, fmt.Errorf("model inference: %w", err)
	}
	if len(resp.Output) < 2 {
		return models.ModelOutput{}, fmt.Errorf("model inference: expected 2 outputs, got %d", len(resp.Output))
	}
	return models.ModelOutput{Action: resp.Output[0], Confidence: resp.Output[1]}, nil
}

var _ domsvc.Inferencer = (*HTTPInferencer)(nil)
