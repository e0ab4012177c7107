package inference

import (
	"fmt"

	domsvc "TradeSignal/internal/domain/service"
	"TradeSignal/pkg/config"
)

// New returns the inferencer selected by model.backend.
func New(cfg *config.Config) (domsvc.Inferencer, error) {
	switch cfg.Model.Backend {
	case "mlp":
		return NewMLPInferencer(cfg)
	case "http", "":
		return NewHTTPInferencer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Model.Backend)
	}
}
