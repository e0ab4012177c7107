package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics are shared by every producer and consumer of the process.
type clientMetrics struct {
	published    *prometheus.CounterVec
	publishBytes *prometheus.CounterVec
	publishTime  *prometheus.HistogramVec

	queueDepth    *prometheus.GaugeVec
	queueFullness *prometheus.GaugeVec
	handleTime    *prometheus.HistogramVec
	handled       *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *clientMetrics
)

func kafkaMetrics() *clientMetrics {
	metricsOnce.Do(func() {
		f := promauto.With(prometheus.DefaultRegisterer)
		sharedMetrics = &clientMetrics{
			published: f.NewCounterVec(prometheus.CounterOpts{
				Name: "tradesignal_kafka_producer_messages_total",
				Help: "Messages handed to the Kafka writer by result",
			}, []string{"topic", "compression", "result"}),
			publishBytes: f.NewCounterVec(prometheus.CounterOpts{
				Name: "tradesignal_kafka_producer_bytes_total",
				Help: "Payload bytes handed to the Kafka writer",
			}, []string{"topic", "compression"}),
			publishTime: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "tradesignal_kafka_producer_publish_seconds",
				Help:    "Time spent in one WriteMessages call",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tradesignal_kafka_consumer_queue_depth",
				Help: "Messages waiting for a consumer worker",
			}, []string{"topic"}),
			queueFullness: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tradesignal_kafka_consumer_queue_fullness",
				Help: "Consumer queue utilization (len/cap)",
			}, []string{"topic"}),
			handleTime: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "tradesignal_kafka_consumer_handle_seconds",
				Help:    "Handler time per message including retries",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			handled: f.NewCounterVec(prometheus.CounterOpts{
				Name: "tradesignal_kafka_consumer_messages_total",
				Help: "Consumed messages by outcome",
			}, []string{"topic", "result"}),
		}
	})
	return sharedMetrics
}

func (m *clientMetrics) observePublish(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(topic, comp, result).Add(float64(count))
	m.publishBytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.publishTime.WithLabelValues(topic).Observe(dur.Seconds())
}

func (m *clientMetrics) observeQueue(topic string, depth, capacity int) {
	if m == nil || capacity == 0 {
		return
	}
	m.queueDepth.WithLabelValues(topic).Set(float64(depth))
	m.queueFullness.WithLabelValues(topic).Set(float64(depth) / float64(capacity))
}

func (m *clientMetrics) observeHandled(topic, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(topic, result).Inc()
	m.handleTime.WithLabelValues(topic).Observe(dur.Seconds())
}
