package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TradeSignal/internal/usecase"
	"TradeSignal/pkg/config"
	xhttp "TradeSignal/pkg/http"
	pkgkafka "TradeSignal/pkg/kafka"
	applogger "TradeSignal/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	topics     []pkgkafka.TopicSpec
	closers    []closer
}

// Option configures optional App components.
type Option func(*App)

// WithCollector runs the market-data ingest collector alongside the API.
func WithCollector(c *usecase.TickCollector) Option {
	return func(a *App) { a.collector = c }
}

// WithConsumer runs a Kafka consumer with the given handlers.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.handlers = append(a.handlers, handlers...)
	}
}

// WithTopics creates the given topics on startup when missing.
func WithTopics(topics ...pkgkafka.TopicSpec) Option {
	return func(a *App) { a.topics = append(a.topics, topics...) }
}

// WithCloser registers a resource released on shutdown. Closers run in registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	a := &App{cfg: cfg, log: log, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start brings up the optional background components and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if len(a.topics) > 0 {
		ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := pkgkafka.EnsureTopics(ensureCtx, a.cfg.Kafka.Brokers, a.topics...)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure topics: %w", err)
		}
		a.log.Info("kafka topics ready", applogger.Int("count", len(a.topics)))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			return fmt.Errorf("start collector: %w", err)
		}
		a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// Shutdown stops intake first, then background workers, then releases clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")
	if a.cfg.Server.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
			errs = append(errs, fmt.Errorf("collector: %w", err))
		}
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, fmt.Errorf("consumer: %w", err))
		}
	}

	// flush aggregated logs while the producer is still open
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
