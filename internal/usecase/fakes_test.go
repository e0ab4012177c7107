package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradeSignal/internal/domain/models"
	drepo "TradeSignal/internal/domain/repository"
)

type recordingMetrics struct {
	mu          sync.Mutex
	errors      map[string]int
	sent        map[string]int
	predictions map[string]int
	actions     map[string]float64
	stages      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		errors:      map[string]int{},
		sent:        map[string]int{},
		predictions: map[string]int{},
		actions:     map[string]float64{},
		stages:      map[string]int{},
	}
}

func (m *recordingMetrics) RecordPrediction(source, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[source+"/"+result]++
}

func (m *recordingMetrics) RecordStageLatency(stage string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func (m *recordingMetrics) RecordAction(symbol string, action, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[symbol] = action
}

func (m *recordingMetrics) RecordMessageSent(backend, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend+"/"+symbol]++
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordLastPrice(string, float64) {}

func (m *recordingMetrics) RecordLatency(string, float64) {}

func (m *recordingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *recordingMetrics) sentCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[key]
}

type memoryTicks struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (s *memoryTicks) Publish(_ context.Context, t *models.Tick) error { return s.add(t) }

func (s *memoryTicks) PublishBatch(_ context.Context, ticks []*models.Tick) error {
	return s.add(ticks...)
}

func (s *memoryTicks) Store(_ context.Context, t *models.Tick) error { return s.add(t) }

func (s *memoryTicks) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	return s.add(ticks...)
}

func (s *memoryTicks) Health(context.Context) error { return nil }

func (s *memoryTicks) Close() error { return nil }

func (s *memoryTicks) add(ticks ...*models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ticks = append(s.ticks, ticks...)
	return nil
}

func (s *memoryTicks) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

var (
	_ drepo.TickPublisher = (*memoryTicks)(nil)
	_ drepo.TickStorage   = (*memoryTicks)(nil)
)

// fakeStream emits the queued ticks once Read is called.
type fakeStream struct {
	mu         sync.Mutex
	ticks      []*models.Tick
	errs       []error
	connected  bool
	reconnects int
	closed     bool
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeStream) Subscribe(context.Context) error { return nil }

func (s *fakeStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	tickCh := make(chan *models.Tick)
	errCh := make(chan error)
	go func() {
		for _, e := range s.errs {
			select {
			case errCh <- e:
			case <-ctx.Done():
				return
			}
		}
		for _, t := range s.ticks {
			select {
			case tickCh <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tickCh, errCh
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.connected = false
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

// fakeSource serves candles from memory and records the ranges it was asked for.
type fakeSource struct {
	mu      sync.Mutex
	candles []models.Candle
	calls   []time.Time // from of each call
	empty   int         // number of initial calls that return nothing
	err     error
	// ignoreTo returns candles after the requested end too, like a source with clock skew.
	ignoreTo bool
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) FetchCandles(_ context.Context, _ string, from, to time.Time, _ drepo.Interval) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, from)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.calls) <= s.empty {
		return nil, nil
	}
	out := make([]models.Candle, 0, len(s.candles))
	for _, c := range s.candles {
		if !c.Bucket.Before(from) && (s.ignoreTo || !c.Bucket.After(to)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// dailyCandles returns n daily candles ending on end's day, close given by price(i).
func dailyCandles(end time.Time, n int, price func(i int) float64) []models.Candle {
	out := make([]models.Candle, n)
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := price(i)
		out[i] = models.Candle{
			Bucket: day.AddDate(0, 0, i-n+1),
			Symbol: "AAPL",
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i),
		}
	}
	return out
}

type fakeInferencer struct {
	mu   sync.Mutex
	out  models.ModelOutput
	err  error
	got  models.FeatureVector
	pos  float64
	hits int
}

func (f *fakeInferencer) Infer(_ context.Context, fv models.FeatureVector, position float64) (models.ModelOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	f.got = fv
	f.pos = position
	return f.out, f.err
}

type recordingSink struct {
	mu   sync.Mutex
	recs []models.PredictionRecord
	err  error
}

func (s *recordingSink) Save(_ context.Context, rec models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

var errBoom = errors.New("boom")
