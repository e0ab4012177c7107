package kafka

import (
	"time"

	applogger "TradeSignal/pkg/logger"
)

// ProducerConfig is the `kafka.producer` config section. Zero values take the `default` tags
// when loaded through the config package.
type ProducerConfig struct {
	RequiredAcks int           `yaml:"required_acks" default:"1"` // -1 waits for all replicas
	Compression  string        `yaml:"compression" default:"snappy"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	Linger       time.Duration `yaml:"linger" default:"10ms"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

// ConsumerConfig is the `kafka.consumer` config section.
type ConsumerConfig struct {
	GroupID         string        `yaml:"group_id" default:"trading-model"`
	AutoOffsetReset string        `yaml:"auto_offset_reset" default:"earliest"` // earliest | latest
	Workers         int           `yaml:"workers" default:"2"`
	BufferSize      int           `yaml:"buffer_size" default:"256"`
	RetryMax        int           `yaml:"retry_max" default:"3"`
	BackoffMin      time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax      time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic        string        `yaml:"dlq_topic" default:"market-data-dlq"`
	MinBytes        int           `yaml:"min_bytes" default:"1"`
	MaxBytes        int           `yaml:"max_bytes" default:"10485760"`
}

// ConsumerOption configures the runtime collaborators of a Consumer.
type ConsumerOption func(*Consumer)

// WithLogger sets the logger used for consumer lifecycle and handler errors.
func WithLogger(l *applogger.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHook installs lifecycle hooks around message handling.
func WithHook(h ConsumerHook) ConsumerOption {
	return func(c *Consumer) {
		if h != nil {
			c.hook = h
		}
	}
}
