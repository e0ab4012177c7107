package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeSignal/internal/domain/models"
	domrepo "TradeSignal/internal/domain/repository"
	"TradeSignal/internal/service/ratelimit"
	applogger "TradeSignal/pkg/logger"
	"TradeSignal/pkg/util"
)

const (
	defaultTickRPS    = 20
	defaultTickBuffer = 1000

	redeliverBackoffMin = 50 * time.Millisecond
	redeliverBackoffMax = 2 * time.Second
)

// ErrInvalidTick wraps every tick rejected before it reaches the backend.
var ErrInvalidTick = errors.New("invalid tick")

// TickSink is where accepted ticks end up, usually a *usecase.TickProcessor.
type TickSink interface {
	Process(ctx context.Context, t *models.Tick) error
}

// RealtimePipeline guards a TickSink on the ingest path. Ticks are checked, rate limited per
// symbol, and parked in a bounded queue when the sink fails so a background loop can retry them.
type RealtimePipeline struct {
	sink      TickSink
	metrics   domrepo.Metrics
	log       *applogger.Logger
	rps       int
	queueSize int
	normalize func(*models.Tick) *models.Tick

	limiter *ratelimit.Limiter
	retry   chan *models.Tick

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per symbol. Zero accepts everything.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.rps = n
		}
	}
}

// WithBufferSize bounds the retry queue used while the sink is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithTransform rewrites ticks before they are rate limited. The result is checked again.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.normalize = fn }
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// UpperSymbol trims and upper-cases the symbol of a tick.
func UpperSymbol(t *models.Tick) *models.Tick {
	c := *t
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	return &c
}

func NewRealtimePipeline(sink TickSink, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sink:      sink,
		metrics:   metrics,
		log:       applogger.NewNop(),
		rps:       defaultTickRPS,
		queueSize: defaultTickBuffer,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rps > 0 {
		p.limiter = ratelimit.New(float64(p.rps), 1)
	}
	p.retry = make(chan *models.Tick, p.queueSize)
	return p
}

// Start runs the redelivery loop until Stop or ctx is done. Calling it twice is a no-op.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.redeliver(ctx, p.done)
}

// Stop ends the redelivery loop and waits for it. Queued ticks stay queued for the next Start.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Buffered reports how many ticks wait for redelivery.
func (p *RealtimePipeline) Buffered() int { return len(p.retry) }

// Process checks, throttles and forwards one tick. A throttled tick is dropped without error.
// A sink failure queues the tick for redelivery and is still returned to the caller.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := checkTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.normalize != nil {
		t = p.normalize(t)
		if err := checkTick(t); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if p.limiter != nil && !p.limiter.Allow(t.Symbol) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.enqueue(t)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	return nil
}

func (p *RealtimePipeline) enqueue(t *models.Tick) {
	select {
	case p.retry <- t:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.retry)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.log.Warn("tick dropped, retry queue full", applogger.String("symbol", t.Symbol), applogger.Int("capacity", p.queueSize))
	}
}

func (p *RealtimePipeline) redeliver(ctx context.Context, done chan struct{}) {
	defer close(done)
	backoff := redeliverBackoffMin
	for {
		var t *models.Tick
		select {
		case <-ctx.Done():
			return
		case t = <-p.retry:
		}

		err := p.sink.Process(ctx, t)
		if err == nil {
			backoff = redeliverBackoffMin
			continue
		}
		p.metrics.RecordError("pipeline_flush")
		p.log.Debug("tick redelivery failed", applogger.String("symbol", t.Symbol), applogger.Duration("backoff", backoff), applogger.Error(err))

		select {
		case <-ctx.Done():
			p.enqueue(t)
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, redeliverBackoffMax)
		p.enqueue(t)
	}
}

func checkTick(t *models.Tick) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil", ErrInvalidTick)
	case t.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	case t.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp %d", ErrInvalidTick, t.Timestamp)
	case !util.IsFinite(t.Price) || !util.IsFinite(t.Volume):
		return fmt.Errorf("%w: non-finite price or volume", ErrInvalidTick)
	case t.Price <= 0 || t.Volume < 0:
		return fmt.Errorf("%w: price %.4f volume %.4f", ErrInvalidTick, t.Price, t.Volume)
	}
	return nil
}
