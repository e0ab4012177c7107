package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSignal/internal/domain/models"
	mid "TradeSignal/internal/middleware"
)

func TestNewTickProcessor_ValidatesBackend(t *testing.T) {
	m := newRecordingMetrics()
	_, err := NewTickProcessor(nil, nil, m, BackendKafka)
	assert.Error(t, err)
	_, err = NewTickProcessor(nil, nil, m, BackendClickHouse)
	assert.Error(t, err)
	_, err = NewTickProcessor(&memoryTicks{}, &memoryTicks{}, m, "nats")
	assert.Error(t, err)
}

func TestTickProcessor_RoutesToBackend(t *testing.T) {
	pub, store := &memoryTicks{}, &memoryTicks{}
	m := newRecordingMetrics()
	ctx := context.Background()

	kp, err := NewTickProcessor(pub, store, m, BackendKafka)
	require.NoError(t, err)
	require.NoError(t, kp.Process(ctx, &models.Tick{Symbol: "AAPL", Timestamp: 1, Price: 1}))
	assert.Equal(t, 1, pub.len())
	assert.Equal(t, 0, store.len())
	assert.Equal(t, 1, m.sentCount("kafka/AAPL"))

	cp, err := NewTickProcessor(pub, store, m, BackendClickHouse)
	require.NoError(t, err)
	require.NoError(t, cp.ProcessBatch(ctx, []*models.Tick{{Symbol: "MSFT"}, {Symbol: "TSLA"}}))
	assert.Equal(t, 2, store.len())
	assert.Equal(t, 1, m.sentCount("clickhouse/TSLA"))

	assert.Error(t, cp.Process(ctx, nil))
	assert.NoError(t, cp.ProcessBatch(ctx, nil))
}

func TestTickProcessor_RecordsErrors(t *testing.T) {
	pub := &memoryTicks{err: errBoom}
	m := newRecordingMetrics()
	p, err := NewTickProcessor(pub, nil, m, BackendKafka)
	require.NoError(t, err)

	err = p.Process(context.Background(), &models.Tick{Symbol: "AAPL"})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.errorCount("process"))
}

func TestTickCollector_FeedsPipelineAndReconnects(t *testing.T) {
	stream := &fakeStream{
		errs: []error{errBoom},
		ticks: []*models.Tick{
			{Symbol: "AAPL", Timestamp: 1700000000, Price: 190},
			{Symbol: "MSFT", Timestamp: 1700000000, Price: 370},
			{Symbol: "BAD", Timestamp: 1700000000, Price: -1},
		},
	}
	pub := &memoryTicks{}
	m := newRecordingMetrics()
	proc, err := NewTickProcessor(pub, nil, m, BackendKafka)
	require.NoError(t, err)
	pipe := mid.NewRealtimePipeline(proc, m, mid.WithMaxRPS(100))

	c := NewTickCollector(stream, proc, pipe, m, nil)
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsConnected())

	require.Eventually(t, func() bool { return pub.len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, stream.reconnectCount())
	assert.Equal(t, 1, m.errorCount("stream"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
	assert.False(t, c.IsConnected())
}

func TestTickCollector_WithoutPipeline(t *testing.T) {
	stream := &fakeStream{ticks: []*models.Tick{{Symbol: "AAPL", Timestamp: 1, Price: 1}}}
	store := &memoryTicks{}
	m := newRecordingMetrics()
	proc, err := NewTickProcessor(nil, store, m, BackendClickHouse)
	require.NoError(t, err)

	c := NewTickCollector(stream, proc, nil, m, nil)
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return store.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Same(t, proc, c.Processor())
}

func TestDecodeMarketMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *models.Tick
		wantErr bool
	}{
		{
			name: "tick",
			in:   `{"symbol":"aapl","t":1700000000,"c":190.5,"v":12}`,
			want: &models.Tick{Symbol: "AAPL", Timestamp: 1700000000, Price: 190.5, Volume: 12},
		},
		{
			name: "quote in milliseconds",
			in:   `{"symbol":"MSFT","c":370.1,"h":371,"l":365,"o":366,"pc":368,"t":1700000000123}`,
			want: &models.Tick{Symbol: "MSFT", Timestamp: 1700000000, Price: 370.1},
		},
		{name: "missing symbol", in: `{"t":1,"c":1}`, wantErr: true},
		{name: "zero price", in: `{"symbol":"A","t":1,"c":0}`, wantErr: true},
		{name: "not json", in: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMarketMessage([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarketDataHandler_StoresTicks(t *testing.T) {
	store := &memoryTicks{}
	m := newRecordingMetrics()
	h := NewMarketDataHandler("market-data", store, m)

	assert.Equal(t, "market-data", h.Topic())
	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"AAPL","t":1700000000,"c":1,"v":2}`)))
	assert.Equal(t, 1, store.len())
	assert.Equal(t, 1, m.sentCount("clickhouse/AAPL"))

	assert.Error(t, h.Handle(context.Background(), []byte(`{}`)))
	assert.Equal(t, 1, m.errorCount("consumer_unmarshal"))

	store.err = errBoom
	assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{"symbol":"AAPL","t":1700000001,"c":1}`)), errBoom)
	assert.Equal(t, 1, m.errorCount("consumer_store"))
}
