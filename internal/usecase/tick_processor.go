package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	mid "TradeSignal/internal/middleware"
)

const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// TickProcessor routes ticks to the market-data bus or straight into storage.
type TickProcessor struct {
	pub     drepo.TickPublisher
	store   drepo.TickStorage
	metrics drepo.Metrics
	backend string
}

var _ mid.TickSink = (*TickProcessor)(nil)

// NewTickProcessor creates a new TickProcessor. The backend's collaborator must be non-nil.
func NewTickProcessor(pub drepo.TickPublisher, store drepo.TickStorage, metrics drepo.Metrics, backend string) (*TickProcessor, error) {
	switch backend {
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("backend %s requires a publisher", backend)
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("backend %s requires a storage", backend)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
	return &TickProcessor{pub: pub, store: store, metrics: metrics, backend: backend}, nil
}

// Process routes a single tick to the configured backend.
func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	var err error
	if p.backend == BackendKafka {
		err = p.pub.Publish(ctx, t)
	} else {
		err = p.store.Store(ctx, t)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, t.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch routes ticks in one round-trip.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	if p.backend == BackendKafka {
		err = p.pub.PublishBatch(ctx, ticks)
	} else {
		err = p.store.StoreBatch(ctx, ticks)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, t := range ticks {
		if t != nil {
			p.metrics.RecordMessageSent(p.backend, t.Symbol)
		}
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
