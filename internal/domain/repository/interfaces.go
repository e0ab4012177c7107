package repository

import (
	"context"
	"time"

	"TradeSignal/internal/domain/models"
)

// MarketStream is a live source of ticks for the ingest pipeline.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TickPublisher forwards ticks to the market-data bus.
type TickPublisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// TickStorage persists ticks.
type TickStorage interface {
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Health(ctx context.Context) error
	Close() error
}

// MarketDataSource supplies OHLCV candles in ascending time order.
type MarketDataSource interface {
	Name() string
	FetchCandles(ctx context.Context, symbol string, from, to time.Time, interval Interval) ([]models.Candle, error)
}

// PredictionSink receives a summary of every completed prediction.
type PredictionSink interface {
	Save(ctx context.Context, rec models.PredictionRecord) error
}

// PredictionStore is a sink that can also be read back.
type PredictionStore interface {
	PredictionSink
	Recent(ctx context.Context, symbol string, limit int) ([]models.PredictionRecord, error)
}

// Metrics records service level measurements.
type Metrics interface {
	RecordPrediction(source, result string)
	RecordStageLatency(stage string, seconds float64)
	RecordAction(symbol string, action, confidence float64)
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
