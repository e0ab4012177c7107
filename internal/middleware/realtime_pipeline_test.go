package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"TradeSignal/internal/domain/models"
	"TradeSignal/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu       sync.Mutex
	failures int
	got      []*models.Tick
}

func (p *recordingProc) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("kafka unavailable")
	}
	p.got = append(p.got, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func tick(sym string, ts int64, price float64) *models.Tick {
	return &models.Tick{Symbol: sym, Timestamp: ts, Price: price, Volume: 1}
}

func TestPipelineValidates(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(0))
	ctx := context.Background()

	assert.ErrorIs(t, p.Process(ctx, nil), ErrInvalidTick)
	assert.Error(t, p.Process(ctx, tick("", 1, 1)))
	assert.Error(t, p.Process(ctx, tick("AAPL", 0, 1)))
	assert.Error(t, p.Process(ctx, tick("AAPL", 1, 0)))
	assert.Error(t, p.Process(ctx, tick("AAPL", 1, math.NaN())))
	assert.NoError(t, p.Process(ctx, tick("AAPL", 1, 189.5)))
	assert.Equal(t, 1, proc.count())
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, tick("AAPL", 1, 100)))
	require.NoError(t, p.Process(ctx, tick("AAPL", 2, 101))) // dropped silently
	require.NoError(t, p.Process(ctx, tick("MSFT", 2, 300)))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineTransform(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(0), WithTransform(func(t *models.Tick) *models.Tick {
		c := *t
		c.Symbol = "X:" + c.Symbol
		return &c
	}))
	require.NoError(t, p.Process(context.Background(), tick("AAPL", 1, 1)))
	assert.Equal(t, "X:AAPL", proc.got[0].Symbol)
}

func TestPipelineBuffersAndRedelivers(t *testing.T) {
	proc := &recordingProc{failures: 2}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(0), WithBufferSize(8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.Process(ctx, tick("AAPL", 1, 100))
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, p.Buffered())
}

func TestPipelineUpperSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithTransform(UpperSymbol))
	require.NoError(t, p.Process(context.Background(), tick(" aapl ", 1, 1)))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, "AAPL", proc.got[0].Symbol)

	assert.ErrorIs(t, p.Process(context.Background(), tick("   ", 1, 1)), ErrInvalidTick)
}

func TestPipelineDropsWhenQueueFull(t *testing.T) {
	proc := &recordingProc{failures: 10}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRPS(0), WithBufferSize(1))
	ctx := context.Background()

	require.Error(t, p.Process(ctx, tick("AAPL", 1, 100)))
	require.Error(t, p.Process(ctx, tick("AAPL", 2, 100)))
	assert.Equal(t, 1, p.Buffered())
}

func TestPipelineStopIsRestartable(t *testing.T) {
	p := NewRealtimePipeline(&recordingProc{}, metrics.Nop{})
	ctx := context.Background()
	p.Start(ctx)
	p.Stop()
	p.Stop()
	p.Start(ctx)
	p.Stop()
}
