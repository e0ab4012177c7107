package usecase

import (
	"context"
	"fmt"
	"sync"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
	mid "TradeSignal/internal/middleware"
	applogger "TradeSignal/pkg/logger"
)

// TickCollector reads ticks from a market stream and hands them to the pipeline.
type TickCollector struct {
	stream  drepo.MarketStream
	proc    *TickProcessor
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *applogger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewTickCollector creates a new TickCollector. pipe may be nil, then ticks go straight to proc.
func NewTickCollector(stream drepo.MarketStream, proc *TickProcessor, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *applogger.Logger) *TickCollector {
	if log == nil {
		log = applogger.NewNop()
	}
	return &TickCollector{stream: stream, proc: proc, pipe: pipe, metrics: metrics, log: log}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes the stream until ctx ends or Shutdown is called.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe stream: %w", err)
	}

	ctx, c.cancel = context.WithCancel(ctx)
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	c.wg.Add(1)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Warn("market stream error, reconnecting", applogger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("market stream reconnect failed", applogger.Error(rerr))
			}
		case t, ok := <-tickCh:
			if !ok {
				return
			}
			if t == nil {
				continue
			}
			var err error
			if c.pipe != nil {
				err = c.pipe.Process(ctx, t)
			} else {
				err = c.proc.Process(ctx, t)
			}
			if err != nil {
				c.log.Debug("tick dropped", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Processor returns the underlying TickProcessor for lifecycle management.
func (c *TickCollector) Processor() *TickProcessor { return c.proc }

// Shutdown stops consumption and the pipeline, then closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
