package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradeSignal/internal/domain/models"
	domrepo "TradeSignal/internal/domain/repository"
	pkgkafka "TradeSignal/pkg/kafka"
)

const tickInsertChunk = 2000

// ClickHouseTickStorage implements TickStorage for ClickHouse.
type ClickHouseTickStorage struct {
	db     *sql.DB
	table  string
	source string
}

var _ domrepo.TickStorage = (*ClickHouseTickStorage)(nil)

// NewClickHouseTickStorage creates tick storage writing into table (database qualified).
func NewClickHouseTickStorage(db *sql.DB, table, source string) *ClickHouseTickStorage {
	if source == "" {
		source = "finnhub"
	}
	return &ClickHouseTickStorage{db: db, table: table, source: source}
}

func (s *ClickHouseTickStorage) Store(ctx context.Context, t *models.Tick) error {
	return s.StoreBatch(ctx, []*models.Tick{t})
}

func (s *ClickHouseTickStorage) StoreBatch(ctx context.Context, ticks []*models.Tick) error {
	for start := 0; start < len(ticks); start += tickInsertChunk {
		end := start + tickInsertChunk
		if end > len(ticks) {
			end = len(ticks)
		}
		q, args := buildTickInsert(s.table, s.source, ticks[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

// buildTickInsert renders a multi-row insert. Ticks without symbol or timestamp are skipped.
func buildTickInsert(table, source string, ticks []*models.Tick) (string, []interface{}) {
	values := make([]string, 0, len(ticks))
	args := make([]interface{}, 0, len(ticks)*6)
	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.Timestamp == 0 {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args,
			time.Unix(t.Timestamp, 0).UTC(),
			t.Symbol,
			t.Price,
			t.Volume,
			source,
			tickEventID(t),
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume, source, event_id) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

// tickEventID identifies a tick for ReplacingMergeTree deduplication.
func tickEventID(t *models.Tick) string {
	return fmt.Sprintf("%s-%d-%g", t.Symbol, t.Timestamp, t.Price)
}

func (s *ClickHouseTickStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTickStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// producer is the part of pkg/kafka.Producer the publishers use.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaTickPublisher implements TickPublisher for Kafka. Messages are keyed by symbol.
type KafkaTickPublisher struct {
	producer producer
	topic    string
}

var _ domrepo.TickPublisher = (*KafkaTickPublisher)(nil)

// NewKafkaTickPublisher creates Kafka publisher.
func NewKafkaTickPublisher(p producer, topic string) *KafkaTickPublisher {
	return &KafkaTickPublisher{producer: p, topic: topic}
}

func (p *KafkaTickPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaTickPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(ticks))
	for _, t := range ticks {
		if t == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(t.Symbol), Value: t})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by the app.
func (p *KafkaTickPublisher) Close() error {
	return nil
}
