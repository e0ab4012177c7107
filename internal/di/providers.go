package di

import (
	"context"
	"fmt"
	"time"

	"TradeSignal/internal/domain/repository"
	domsvc "TradeSignal/internal/domain/service"
	"TradeSignal/internal/handler/api"
	mid "TradeSignal/internal/middleware"
	internalrepo "TradeSignal/internal/repository"
	"TradeSignal/internal/service/finnhub"
	"TradeSignal/internal/service/marketdata"
	"TradeSignal/internal/service/ratelimit"
	"TradeSignal/internal/services/inference"
	"TradeSignal/internal/usecase"
	"TradeSignal/pkg/cache"
	pkgch "TradeSignal/pkg/clickhouse"
	"TradeSignal/pkg/config"
	xhttp "TradeSignal/pkg/http"
	pkgkafka "TradeSignal/pkg/kafka"
	applogger "TradeSignal/pkg/logger"
	"TradeSignal/pkg/metrics"
	"TradeSignal/pkg/server"

	"github.com/segmentio/kafka-go"
)

const serviceName = "tradesignal"

func needsProducer(cfg *config.Config) bool {
	return cfg.Prediction.PublishKafka ||
		cfg.Logging.Collector.Enabled ||
		(cfg.Ingest.Enabled && cfg.Ingest.Backend == usecase.BackendKafka)
}

func consumesTicks(cfg *config.Config) bool {
	return cfg.Ingest.Enabled && cfg.Ingest.Backend == usecase.BackendKafka && cfg.Ingest.Consume
}

func table(cfg *config.Config, name string) string {
	return cfg.ClickHouse.Database + "." + name
}

// ProvideKafkaProducer creates a Kafka producer, or nil when nothing publishes.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !needsProducer(cfg) {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Producer)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Error logs are aggregated to Kafka when the collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        serviceName,
			TimeInterval:   cfg.Logging.Collector.FlushInterval,
			CountThreshold: cfg.Logging.Collector.CountThreshold,
			IncludeWarn:    cfg.Logging.Collector.IncludeWarn,
			Topic:          cfg.Logging.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client with the schema applied, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCache creates the real-time prediction cache: in-process, optionally backed by Redis.
// Returns nil when caching is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(cfg.Cache.Memory, cfg.Cache.TTL), nil
	}
	remote, err := cache.NewRedisCache(cfg.Cache.Redis.RedisConfig)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(remote, cfg.Cache.Memory, cfg.Cache.TTL/2), nil
}

// ProvideInferencer creates the model backend selected by model.backend.
func ProvideInferencer(cfg *config.Config) (domsvc.Inferencer, error) {
	m, err := inference.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return m, nil
}

// ProvideMarketDataSource creates the candle source selected by market_data.source.
func ProvideMarketDataSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.MarketDataSource, error) {
	switch cfg.MarketData.Source {
	case "yahoo":
		return marketdata.NewYahooSource(cfg), nil
	case "influxdb":
		return marketdata.NewInfluxSource(cfg), nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("market data source clickhouse requires clickhouse.enabled")
		}
		store := internalrepo.NewCHCandleStore(ch.DB(), table(cfg, pkgch.TicksTable))
		store.SetLogger(l)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown market data source %q", cfg.MarketData.Source)
	}
}

// ProvidePredictionStore creates the ClickHouse prediction log, or nil when disabled.
func ProvidePredictionStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.PredictionStore {
	if !cfg.Prediction.StoreClickHouse || ch == nil {
		return nil
	}
	store := internalrepo.NewCHPredictionStore(ch.DB(), table(cfg, pkgch.PredictionsTable))
	store.SetLogger(l)
	return store
}

// ProvidePredictionSinks collects every enabled prediction sink.
func ProvidePredictionSinks(cfg *config.Config, store repository.PredictionStore, producer *pkgkafka.Producer) []repository.PredictionSink {
	var sinks []repository.PredictionSink
	if store != nil {
		sinks = append(sinks, store)
	}
	if cfg.Prediction.PublishKafka && producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaPredictionPublisher(producer, cfg.Prediction.PredictionsTopic))
	}
	return sinks
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(model domsvc.Inferencer, m repository.Metrics, sinks []repository.PredictionSink, l *applogger.Logger) *usecase.Predictor {
	return usecase.NewPredictor(model, m,
		usecase.WithSinks(sinks...),
		usecase.WithPredictorLogger(l),
	)
}

// ProvideRealtimePredictor creates the real-time prediction use case.
func ProvideRealtimePredictor(
	cfg *config.Config,
	source repository.MarketDataSource,
	predictor *usecase.Predictor,
	m repository.Metrics,
	c cache.Service,
	l *applogger.Logger,
) *usecase.RealtimePredictor {
	opts := []usecase.RealtimeOption{
		usecase.WithMaxPriceChange(cfg.Prediction.MaxPriceChange),
		usecase.WithDefaults(cfg.Prediction.DefaultSymbol, cfg.Prediction.DefaultWindowSize),
		usecase.WithRealtimeLogger(l),
	}
	if c != nil {
		opts = append(opts, usecase.WithCache(c, cfg.Cache.TTL))
	}
	return usecase.NewRealtimePredictor(source, predictor, m, opts...)
}

// ProvideCandlesUseCase serves the raw market data behind real-time predictions.
func ProvideCandlesUseCase(source repository.MarketDataSource) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(source)
}

// ProvideBatchPredictor fans real-time predictions out over several symbols.
func ProvideBatchPredictor(cfg *config.Config, realtime *usecase.RealtimePredictor) *usecase.BatchPredictor {
	return usecase.NewBatchPredictor(realtime, cfg.Prediction.BatchTimeout)
}

// ProvideRateLimiter creates the per-IP limiter for real-time predictions.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := ratelimit.New(cfg.Prediction.RateLimit.RPS, cfg.Prediction.RateLimit.Burst)
	rl.StartPruning(time.Minute, 10*time.Minute)
	return rl
}

// ProvidePredictionHandler creates the HTTP handler for prediction routes.
func ProvidePredictionHandler(
	l *applogger.Logger,
	predictor *usecase.Predictor,
	realtime *usecase.RealtimePredictor,
	candles *usecase.CandlesUseCase,
	batch *usecase.BatchPredictor,
	rl *ratelimit.Limiter,
	store repository.PredictionStore,
) *api.PredictionEchoHandler {
	opts := []api.HandlerOption{
		api.WithRateLimiter(rl),
		api.WithCandles(candles),
		api.WithBatch(batch),
	}
	if store != nil {
		opts = append(opts, api.WithHistory(store))
	}
	return api.NewPredictionEchoHandler(l, predictor, realtime, opts...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.PredictionEchoHandler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithLogger(l),
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(""))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideMarketStream creates the Finnhub stream selected by ingest.mode.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	if cfg.Ingest.Mode == "poll" {
		return finnhub.NewQuotePoller(cfg, l)
	}
	return finnhub.New(cfg, l)
}

// ProvideTickCollector creates the ingest collector, or nil when ingest is disabled.
func ProvideTickCollector(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.TickCollector, error) {
	if !cfg.Ingest.Enabled {
		return nil, nil
	}

	var (
		pub   repository.TickPublisher
		store repository.TickStorage
	)
	switch cfg.Ingest.Backend {
	case usecase.BackendKafka:
		if producer == nil {
			return nil, fmt.Errorf("ingest backend kafka requires a producer")
		}
		pub = internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
	case usecase.BackendClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("ingest backend clickhouse requires clickhouse.enabled")
		}
		store = internalrepo.NewClickHouseTickStorage(ch.DB(), table(cfg, pkgch.TicksTable), cfg.Ingest.Source)
	}

	proc, err := usecase.NewTickProcessor(pub, store, m, cfg.Ingest.Backend)
	if err != nil {
		return nil, fmt.Errorf("tick processor: %w", err)
	}

	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
		mid.WithTransform(mid.UpperSymbol),
		mid.WithPipelineLogger(l),
	)
	return usecase.NewTickCollector(ProvideMarketStream(cfg, l), proc, pipe, m, l), nil
}

// ProvideMarketDataHandler stores consumed ticks in ClickHouse, or is nil when nothing consumes.
func ProvideMarketDataHandler(cfg *config.Config, ch *pkgch.Client, m repository.Metrics) *usecase.MarketDataHandler {
	if !consumesTicks(cfg) || ch == nil {
		return nil
	}
	storage := internalrepo.NewClickHouseTickStorage(ch.DB(), table(cfg, pkgch.TicksTable), cfg.Ingest.Source)
	return usecase.NewMarketDataHandler(cfg.Kafka.Topic, storage, m)
}

// ProvideKafkaConsumer creates the market-data consumer, or nil when nothing consumes.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !consumesTicks(cfg) {
		return nil, nil
	}
	hook := pkgkafka.HookFuncs{
		FailedFunc: func(_ context.Context, km kafka.Message, _ int, _ error) {
			m.RecordError("consume_" + km.Topic)
		},
	}
	consumer, err := pkgkafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Consumer,
		pkgkafka.WithLogger(l),
		pkgkafka.WithHook(hook),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideTopics lists the topics created on startup.
func ProvideTopics(cfg *config.Config) []pkgkafka.TopicSpec {
	if !cfg.Ingest.EnsureTopics || len(cfg.Kafka.Brokers) == 0 || !needsProducer(cfg) {
		return nil
	}
	spec := func(name string) pkgkafka.TopicSpec {
		return pkgkafka.TopicSpec{Name: name, Partitions: cfg.Kafka.Partitions, ReplicationFactor: cfg.Kafka.Replication}
	}
	var topics []pkgkafka.TopicSpec
	if cfg.Ingest.Enabled && cfg.Ingest.Backend == usecase.BackendKafka {
		topics = append(topics, spec(cfg.Kafka.Topic))
		if cfg.Ingest.Consume && cfg.Kafka.Consumer.DLQTopic != "" {
			topics = append(topics, spec(cfg.Kafka.Consumer.DLQTopic))
		}
	}
	if cfg.Prediction.PublishKafka {
		topics = append(topics, spec(cfg.Prediction.PredictionsTopic))
	}
	if cfg.Logging.Collector.Enabled {
		topics = append(topics, spec(cfg.Logging.Collector.Topic))
	}
	return topics
}

type closable interface {
	Close()
}

// ProvideApp assembles the application and registers shutdown order: producer last so
// buffered log entries and prediction records can still be flushed.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	mdh *usecase.MarketDataHandler,
	topics []pkgkafka.TopicSpec,
	rl *ratelimit.Limiter,
	source repository.MarketDataSource,
	c cache.Service,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	opts := []server.Option{server.WithTopics(topics...)}
	if collector != nil {
		opts = append(opts,
			server.WithCollector(collector),
			server.WithCloser("tick processor", func() error { collector.Processor().Close(); return nil }),
		)
	}
	if consumer != nil && mdh != nil {
		opts = append(opts, server.WithConsumer(consumer, mdh))
	}
	if rl != nil {
		opts = append(opts, server.WithCloser("rate limiter", rl.Close))
	}
	if src, ok := source.(closable); ok {
		opts = append(opts, server.WithCloser(source.Name(), func() error { src.Close(); return nil }))
	}
	if c != nil {
		opts = append(opts, server.WithCloser("cache", c.Close))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka producer", producer.Close))
	}
	return server.New(cfg, l, srv, opts...)
}
