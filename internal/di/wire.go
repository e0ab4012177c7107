//go:build wireinject
// +build wireinject

package di

import (
	"TradeSignal/pkg/config"
	"TradeSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories and collaborators
		ProvideInferencer,
		ProvideMarketDataSource,
		ProvidePredictionStore,
		ProvidePredictionSinks,

		// Use cases
		ProvidePredictor,
		ProvideRealtimePredictor,
		ProvideCandlesUseCase,
		ProvideBatchPredictor,
		ProvideTickCollector,
		ProvideMarketDataHandler,
		ProvideKafkaConsumer,
		ProvideTopics,

		// HTTP
		ProvideRateLimiter,
		ProvidePredictionHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
