package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "TradeSignal/pkg/logger"
)

const (
	commitAttempts = 3
	commitTimeout  = 2 * time.Second
	dlqTimeout     = 5 * time.Second
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// offsetCommitter is the part of *kafka.Reader used after a message is done.
type offsetCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer reads its registered topics as one consumer group and hands messages to a worker
// pool. Messages of one partition are handled one at a time, in order. A message that keeps
// failing is written to the dead-letter topic, when configured, and committed.
type Consumer struct {
	cfg      ConsumerConfig
	brokers  []string
	log      *applogger.Logger
	hook     ConsumerHook
	metrics  *clientMetrics
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      messageWriter

	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan kafka.Message
	readersWg sync.WaitGroup
	workersWg sync.WaitGroup
	stopOnce  sync.Once

	partMu    sync.Mutex
	partLocks map[string]*sync.Mutex
}

// NewConsumer creates a consumer group member on brokers. Handlers are attached with RegisterHandler.
func NewConsumer(brokers []string, cfg ConsumerConfig, opts ...ConsumerOption) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 50 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		brokers:   brokers,
		log:       applogger.NewNop(),
		hook:      HookFuncs{},
		metrics:   kafkaMetrics(),
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]*kafka.Reader),
		ctx:       ctx,
		cancel:    cancel,
		queue:     make(chan kafka.Message, cfg.BufferSize),
		partLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(brokers...), Balancer: &kafka.Hash{}, WriteTimeout: dlqTimeout}
	}
	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
// It must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and starts the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	startOffset := kafka.FirstOffset
	if c.cfg.AutoOffsetReset == "latest" {
		startOffset = kafka.LastOffset
	}

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: startOffset,
		})
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.workersWg.Add(1)
		go c.work()
	}
	for topic, reader := range c.readers {
		c.readersWg.Add(1)
		go c.read(topic, reader)
	}

	c.log.Info("kafka consumer: started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.Workers),
	)
	return nil
}

// Stop cancels reading, lets the workers drain the queue, then closes the readers.
// ctx bounds the drain.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.log.Info("kafka consumer: stopping")
		c.cancel()

		// no reader may send once the queue is closed
		c.readersWg.Wait()
		close(c.queue)
		stopErr = waitGroup(ctx, &c.workersWg)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Error("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("kafka consumer: close dlq writer", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("kafka consumer: stopped")
		}
	})
	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer workers: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) read(topic string, reader *kafka.Reader) {
	defer c.readersWg.Done()
	for {
		km, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("kafka consumer: fetch message", applogger.String("topic", topic), applogger.Error(err))
			if !c.sleep(c.cfg.BackoffMin) {
				return
			}
			continue
		}

		select {
		case c.queue <- km:
			c.metrics.observeQueue(topic, len(c.queue), cap(c.queue))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workersWg.Done()
	for km := range c.queue {
		handler, ok := c.handlers[km.Topic]
		if !ok {
			continue
		}
		c.process(handler, c.readers[km.Topic], km)
	}
}

// process handles km with retries, dead-letters it when it keeps failing, and commits it when
// it succeeded or was dead-lettered. Without a dead-letter topic a failed message stays
// uncommitted and is redelivered after a rebalance.
func (c *Consumer) process(handler MessageHandler, committer offsetCommitter, km kafka.Message) {
	start := time.Now()
	pl := c.partitionLock(km.Topic, km.Partition)
	pl.Lock()
	defer pl.Unlock()

	attempts, err := c.handle(handler, km)
	result := "ok"
	if err != nil {
		result = "failed"
		guarded(func() { c.hook.Failed(context.Background(), km, attempts, err) })
		c.log.Error("kafka consumer: handle message",
			applogger.String("topic", km.Topic),
			applogger.Int("partition", km.Partition),
			applogger.Int64("offset", km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		if c.deadLetter(km, attempts, err) {
			result = "dead_lettered"
		}
	}
	c.metrics.observeHandled(km.Topic, result, time.Since(start))

	if (err == nil || result == "dead_lettered") && committer != nil {
		c.commit(committer, km)
	}
}

// handle runs the handler up to RetryMax+1 times. A panic counts as a failed attempt.
func (c *Consumer) handle(handler MessageHandler, km kafka.Message) (int, error) {
	var err error
	attempts := 0
	for {
		attempts++
		err = c.attempt(handler, km)
		if err == nil || attempts > c.cfg.RetryMax {
			return attempts, err
		}
		if !c.sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			return attempts, err
		}
	}
}

func (c *Consumer) attempt(handler MessageHandler, km kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	ctx, err := c.hook.Before(context.Background(), km)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, km.Value)
	guarded(func() { c.hook.After(ctx, km, err) })
	return err
}

func (c *Consumer) deadLetter(km kafka.Message, attempts int, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), dlqTimeout)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(km.Topic)},
			{Key: "source_partition", Value: []byte(strconv.Itoa(km.Partition))},
			{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
			{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("kafka consumer: write dlq", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(committer offsetCommitter, km kafka.Message) {
	var err error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		err = committer.CommitMessages(ctx, km)
		cancel()
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka consumer: commit offset",
		applogger.String("topic", km.Topic),
		applogger.Int64("offset", km.Offset),
		applogger.Error(err))
}

// sleep waits d unless the consumer is stopping. It reports whether the full wait elapsed.
func (c *Consumer) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := topic + "/" + strconv.Itoa(partition)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}

// backoffWithJitter doubles min per attempt up to max and takes off up to half of it.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}
