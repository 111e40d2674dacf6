package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every messaging metric, e.g.
// catalog_kafka_consumer_messages_processed_total.
const namespace = "catalog"

var (
	consumerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "messages_received_total",
			Help:      "Total number of Kafka messages fetched from the broker",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "messages_processed_total",
			Help:      "Total number of successfully processed Kafka messages",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "messages_failed_total",
			Help:      "Total number of Kafka messages that failed all retries",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerDLQPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "dlq_published_total",
			Help:      "Total number of messages published to a dead-letter topic",
		},
		[]string{"topic", "consumer_group"},
	)

	consumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "processing_duration_seconds",
			Help:      "Duration of Kafka message processing in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic", "consumer_group"},
	)

	duplicateEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_consumer",
			Name:      "messages_duplicate_total",
			Help:      "Total number of duplicate events skipped by the idempotency guard",
		},
		[]string{"event_type"},
	)

	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_producer",
			Name:      "messages_published_total",
			Help:      "Total number of Kafka messages published",
		},
		[]string{"topic"},
	)

	producerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka_producer",
			Name:      "publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		},
		[]string{"topic"},
	)

	producerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kafka_producer",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
