package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TradeSignal/internal/domain/models"
	domrepo "TradeSignal/internal/domain/repository"
	pkgkafka "TradeSignal/pkg/kafka"
)

// MarketDataHandler consumes market-data messages and writes ticks to storage.
type MarketDataHandler struct {
	topic   string
	storage domrepo.TickStorage
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*MarketDataHandler)(nil)

func NewMarketDataHandler(topic string, storage domrepo.TickStorage, metrics domrepo.Metrics) *MarketDataHandler {
	return &MarketDataHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *MarketDataHandler) Topic() string { return h.topic }

// marketMessage covers tick messages {symbol,t,c,v} and quote messages {symbol,c,h,l,o,pc,t}.
// Quotes carry no volume.
type marketMessage struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
	V      float64 `json:"v"`
}

// Handle decodes one message. Malformed messages return an error so the consumer routes them to the DLQ.
func (h *MarketDataHandler) Handle(ctx context.Context, b []byte) error {
	t, err := decodeMarketMessage(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	h.metrics.RecordLatency("ingest_e2e", time.Since(time.Unix(t.Timestamp, 0)).Seconds())

	start := time.Now()
	err = h.storage.Store(ctx, t)
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", t.Symbol)
	h.metrics.RecordLastPrice(t.Symbol, t.Price)
	return nil
}

func decodeMarketMessage(b []byte) (*models.Tick, error) {
	var m marketMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode market message: %w", err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(m.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("decode market message: missing symbol")
	}
	if m.T <= 0 || m.C <= 0 {
		return nil, fmt.Errorf("decode market message: missing price or timestamp for %s", symbol)
	}
	ts := m.T
	if ts > 1e11 { // ms
		ts /= 1000
	}
	return &models.Tick{Symbol: symbol, Timestamp: ts, Price: m.C, Volume: m.V}, nil
}
