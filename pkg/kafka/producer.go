package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON payloads. Messages are partitioned by key so every symbol keeps
// its order.
type Producer struct {
	writer  messageWriter
	comp    string
	metrics *clientMetrics
}

// Message is one record of a batch. Value is sent as is when it is []byte or string and as
// JSON otherwise.
type Message struct {
	Key   []byte
	Value interface{}
}

func NewProducer(brokers []string, cfg ProducerConfig) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.Linger,
		Async:        cfg.Async,
	}
	return &Producer{writer: writer, comp: cfg.Compression, metrics: kafkaMetrics()}, nil
}

// Publish sends one message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.write(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage publishes payload without a key. It lets the producer serve as logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch sends messages to topic in one write. Nothing is sent when any value fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	return p.write(ctx, topic, messages)
}

func (p *Producer) write(ctx context.Context, topic string, messages []Message) error {
	start := time.Now()
	now := start.UTC()
	msgs := make([]kafka.Message, 0, len(messages))
	var size int64
	for i, m := range messages {
		v, ctype, err := encodeValue(m.Value)
		if err != nil {
			return fmt.Errorf("publish %s: message %d: %w", topic, i, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic:   topic,
			Key:     m.Key,
			Value:   v,
			Time:    now,
			Headers: []kafka.Header{{Key: "content-type", Value: []byte(ctype)}},
		})
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observePublish(topic, p.comp, size, len(msgs), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func encodeValue(value interface{}) ([]byte, string, error) {
	switch v := value.(type) {
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain", nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, "", fmt.Errorf("marshal value: %w", err)
		}
		return b, "application/json", nil
	}
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Gzip
	}
}
