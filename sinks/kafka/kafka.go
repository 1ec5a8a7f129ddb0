package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/scopedstatsd"
	"github.com/stripe/statsdecoder/sinks"
	"github.com/stripe/statsdecoder/util"
)

func init() {
	gometrics.UseNilMetrics = true
}

// IngestTimeout bounds how long a batch waits for room in the producer's
// input buffer.
const IngestTimeout = 5 * time.Second

var ErrIngestTimeout = errors.New("timed out writing to Kafka producer")

type KafkaMetricSinkConfig struct {
	Broker                string        `yaml:"broker"`
	MetricBufferBytes     int           `yaml:"metric_buffer_bytes"`
	MetricBufferFrequency time.Duration `yaml:"metric_buffer_frequency"`
	MetricBufferMessages  int           `yaml:"metric_buffer_messages"`
	MetricRequireAcks     string        `yaml:"metric_require_acks"`
	MetricTopic           string        `yaml:"metric_topic"`
	Partitioner           string        `yaml:"partitioner"`
	RetryMax              int           `yaml:"retry_max"`
}

// KafkaMetricSink publishes every decoded metric as a JSON message, keyed
// by metric name.
type KafkaMetricSink struct {
	brokers     string
	config      *sarama.Config
	logger      *logrus.Entry
	metricTopic string
	name        string
	newProducer func([]string, *sarama.Config) (sarama.AsyncProducer, error)
	producer    sarama.AsyncProducer
	statsd      scopedstatsd.Client
}

var _ sinks.MetricSink = &KafkaMetricSink{}

// ParseMetricConfig decodes the map config for a Kafka metric sink into a
// KafkaMetricSinkConfig struct.
func ParseMetricConfig(
	name string, config interface{},
) (statsdecoder.MetricSinkConfig, error) {
	kafkaConfig := KafkaMetricSinkConfig{}
	err := util.DecodeConfig(name, config, &kafkaConfig)
	if err != nil {
		return nil, err
	}
	return kafkaConfig, nil
}

// CreateMetricSink creates a new Kafka sink for metrics. This function
// should match the signature of a value in statsdecoder.MetricSinkTypes, and
// is intended to be passed into statsdecoder.NewFromConfig to be called based
// on the provided configuration.
func CreateMetricSink(
	server *statsdecoder.Server, name string, logger *logrus.Entry,
	config statsdecoder.Config, sinkConfig statsdecoder.MetricSinkConfig,
) (sinks.MetricSink, error) {
	kafkaConfig, ok := sinkConfig.(KafkaMetricSinkConfig)
	if !ok {
		return nil, errors.New("invalid sink config type")
	}

	if kafkaConfig.Broker == "" {
		return nil, errors.New("cannot start Kafka metric sink with no broker")
	}
	if kafkaConfig.MetricTopic == "" {
		return nil, errors.New("cannot start Kafka metric sink with no metric topic")
	}

	logger.WithField("config", fmt.Sprintf("%+v", kafkaConfig)).
		Info("Created Kafka metric sink")

	return &KafkaMetricSink{
		brokers: kafkaConfig.Broker,
		config: newProducerConfig(
			logger,
			kafkaConfig.MetricRequireAcks,
			kafkaConfig.Partitioner,
			kafkaConfig.RetryMax,
			kafkaConfig.MetricBufferBytes,
			kafkaConfig.MetricBufferMessages,
			kafkaConfig.MetricBufferFrequency,
		),
		logger:      logger,
		metricTopic: kafkaConfig.MetricTopic,
		name:        name,
		newProducer: sarama.NewAsyncProducer,
		statsd:      scopedstatsd.Ensure(server.Statsd),
	}, nil
}

func newProducerConfig(
	logger *logrus.Entry, ackRequirement string, partitioner string,
	retries int, bufferBytes int, bufferMessages int,
	bufferFrequency time.Duration,
) *sarama.Config {
	config := sarama.NewConfig()
	switch ackRequirement {
	case "all":
		config.Producer.RequiredAcks = sarama.WaitForAll
	case "none":
		config.Producer.RequiredAcks = sarama.NoResponse
	case "local":
		config.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		logger.WithField("ack_requirement", ackRequirement).
			Warn("Unknown ack requirement, defaulting to all")
		config.Producer.RequiredAcks = sarama.WaitForAll
	}

	switch partitioner {
	case "random":
		config.Producer.Partitioner = sarama.NewRandomPartitioner
	default:
		config.Producer.Partitioner = sarama.NewHashPartitioner
	}

	if bufferBytes != 0 {
		config.Producer.Flush.Bytes = bufferBytes
	}
	if bufferMessages != 0 {
		config.Producer.Flush.Messages = bufferMessages
	}
	if bufferFrequency != 0 {
		config.Producer.Flush.Frequency = bufferFrequency
	}

	config.Producer.Retry.Max = retries

	// If either of these is set to true, you must
	// read from the corresponding channels in a separate
	// goroutine. Otherwise, the entire sink will back up.
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = false

	return config
}

// Name returns the name of this sink.
func (k *KafkaMetricSink) Name() string {
	return k.name
}

// Start connects the producer to the brokers.
func (k *KafkaMetricSink) Start(ctx context.Context) error {
	brokerList := strings.Split(k.brokers, ",")
	k.logger.WithField("addrs", brokerList).Info("Connecting to Kafka")
	producer, err := k.newProducer(brokerList, k.config)
	if err != nil {
		return fmt.Errorf("error connecting to Kafka: %w", err)
	}
	k.producer = producer
	return nil
}

// Ingest hands each metric to the producer, which sends them
// asynchronously.
func (k *KafkaMetricSink) Ingest(
	ctx context.Context, metrics []statsd.Metric,
) error {
	timeout := time.NewTimer(IngestTimeout)
	defer timeout.Stop()

	tags := []string{"sink:" + k.Name()}
	for _, metric := range metrics {
		encoded, err := json.Marshal(metric)
		if err != nil {
			k.logger.WithError(err).WithField("metric", metric.Name).
				Warn("Error marshalling metric")
			k.statsd.Count(sinks.MetricKeyTotalMetricsDropped, 1, tags, 1.0)
			continue
		}

		select {
		case k.producer.Input() <- &sarama.ProducerMessage{
			Topic: k.metricTopic,
			Key:   sarama.StringEncoder(metric.Name),
			Value: sarama.ByteEncoder(encoded),
		}:
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return ErrIngestTimeout
		}
	}
	return nil
}

// Stop flushes buffered messages and closes the producer.
func (k *KafkaMetricSink) Stop() {
	if k.producer == nil {
		return
	}
	if err := k.producer.Close(); err != nil {
		k.logger.WithError(err).Warn("Error closing Kafka producer")
	}
}
