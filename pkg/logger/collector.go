package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships aggregated entries, typically a Kafka producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	Service        string        // copied into every entry
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // distinct entries that trigger an early flush
	IncludeWarn    bool          // collect warnings as well as errors
	Topic          string
	Publisher      Publisher
}

const (
	defaultFlushInterval  = 30 * time.Second
	defaultCountThreshold = 100
	publishTimeout        = 10 * time.Second
)

// AggregatedLogEntry counts identical log lines seen during one flush interval.
type AggregatedLogEntry struct {
	Service   string                 `json:"service,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs and publishes them in batches, so a failing
// dependency yields one entry with a count instead of a log storm.
type LogCollector struct {
	config  *CollectionConfig
	minimum zerolog.Level
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	// fallback reports publish failures; the publisher itself may be what is failing.
	fallback zerolog.Logger
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = defaultFlushInterval
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = defaultCountThreshold
	}
	c := &LogCollector{
		config:   config,
		minimum:  zerolog.ErrorLevel,
		entries:  make(map[uint64]*AggregatedLogEntry),
		stop:     make(chan struct{}),
		fallback: zerolog.New(os.Stderr).With().Timestamp().Str("component", "log_collector").Logger(),
	}
	if config.IncludeWarn {
		c.minimum = zerolog.WarnLevel
	}

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *LogCollector) accepts(level zerolog.Level) bool {
	return level >= c.minimum
}

// AddLog records one occurrence. Entries match on level, message, caller and field values.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Service:   c.config.Service,
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.config.CountThreshold {
		c.publishAsync(c.drain())
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

func (c *LogCollector) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			batch := c.drain()
			c.mu.Unlock()
			c.publish(batch)
		case <-c.stop:
			c.mu.Lock()
			batch := c.drain()
			c.mu.Unlock()
			c.publish(batch)
			return
		}
	}
}

// drain empties the map. Caller holds mu.
func (c *LogCollector) drain() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	c.entries = make(map[uint64]*AggregatedLogEntry)
	return out
}

func (c *LogCollector) publishAsync(batch []AggregatedLogEntry) {
	if len(batch) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.publish(batch)
	}()
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		c.fallback.Error().Err(err).Int("entries", len(batch)).Msg("publish aggregated logs")
	}
}

// Close flushes pending entries and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}
