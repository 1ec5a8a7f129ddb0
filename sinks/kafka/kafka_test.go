package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
)

var testConfig = KafkaMetricSinkConfig{
	Broker:               "testing",
	MetricTopic:          "testMetricTopic",
	MetricRequireAcks:    "all",
	Partitioner:          "hash",
	RetryMax:             0,
	MetricBufferBytes:    0,
	MetricBufferMessages: 0,
}

func newTestSink(
	t *testing.T, producer sarama.AsyncProducer,
) *KafkaMetricSink {
	sink, err := CreateMetricSink(
		&statsdecoder.Server{},
		"kafka",
		logrus.NewEntry(logrus.StandardLogger()),
		statsdecoder.Config{},
		testConfig,
	)
	require.NoError(t, err)
	kafkaSink, ok := sink.(*KafkaMetricSink)
	require.True(t, ok)

	kafkaSink.newProducer = func(
		brokers []string, config *sarama.Config,
	) (sarama.AsyncProducer, error) {
		assert.Equal(t, []string{"testing"}, brokers)
		return producer, nil
	}
	require.NoError(t, kafkaSink.Start(context.Background()))
	return kafkaSink
}

func TestMetricIngest(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producerMock := mocks.NewAsyncProducer(t, config)
	producerMock.ExpectInputAndSucceed()

	kafkaSink := newTestSink(t, producerMock)

	metric := statsd.Metric{
		Name:      "a.b.c",
		Value:     100,
		Type:      statsd.GaugeMetric,
		Sender:    netip.MustParseAddrPort("10.0.0.7:50312"),
		Recipient: netip.MustParseAddrPort("10.0.0.1:8125"),
	}
	require.NoError(t, kafkaSink.Ingest(context.Background(), []statsd.Metric{metric}))

	msg := <-producerMock.Successes()
	assert.Equal(t, "testMetricTopic", msg.Topic)
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", string(key))

	contents, err := msg.Value.Encode()
	require.NoError(t, err)
	var decoded statsd.Metric
	require.NoError(t, json.Unmarshal(contents, &decoded))
	assert.True(t, metric.Equal(decoded), "got %+v", decoded)

	kafkaSink.Stop()
}

func TestMetricIngestKeepsOrder(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producerMock := mocks.NewAsyncProducer(t, config)
	producerMock.ExpectInputAndSucceed()
	producerMock.ExpectInputAndSucceed()

	kafkaSink := newTestSink(t, producerMock)
	require.NoError(t, kafkaSink.Ingest(context.Background(), []statsd.Metric{
		{Name: "first", Type: statsd.CounterMetric},
		{Name: "second", Type: statsd.CounterMetric},
	}))

	for _, name := range []string{"first", "second"} {
		key, err := (<-producerMock.Successes()).Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, name, string(key))
	}
	kafkaSink.Stop()
}

// blockedProducer never accepts input.
type blockedProducer struct {
	sarama.AsyncProducer
	input chan *sarama.ProducerMessage
}

func (p blockedProducer) Input() chan<- *sarama.ProducerMessage {
	return p.input
}

func TestMetricIngestCancelled(t *testing.T) {
	kafkaSink := newTestSink(t, blockedProducer{
		input: make(chan *sarama.ProducerMessage),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := kafkaSink.Ingest(ctx, []statsd.Metric{{Name: "a.b.c"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartError(t *testing.T) {
	sink, err := CreateMetricSink(
		&statsdecoder.Server{}, "kafka",
		logrus.NewEntry(logrus.StandardLogger()),
		statsdecoder.Config{}, testConfig)
	require.NoError(t, err)
	kafkaSink := sink.(*KafkaMetricSink)
	kafkaSink.newProducer = func([]string, *sarama.Config) (sarama.AsyncProducer, error) {
		return nil, errors.New("no brokers available")
	}
	assert.Error(t, kafkaSink.Start(context.Background()))

	// nothing to close
	kafkaSink.Stop()
}

func TestCreateMetricSink(t *testing.T) {
	sink, err := CreateMetricSink(
		&statsdecoder.Server{}, "kafka",
		logrus.NewEntry(logrus.StandardLogger()),
		statsdecoder.Config{},
		KafkaMetricSinkConfig{
			Broker:                "testing",
			MetricTopic:           "statsd_metrics",
			MetricRequireAcks:     "local",
			Partitioner:           "random",
			RetryMax:              1,
			MetricBufferBytes:     2,
			MetricBufferMessages:  3,
			MetricBufferFrequency: 10 * time.Second,
		})
	require.NoError(t, err)
	kafkaSink := sink.(*KafkaMetricSink)

	assert.Equal(t, "kafka", kafkaSink.Name())
	assert.Equal(t, "statsd_metrics", kafkaSink.metricTopic)
	assert.Equal(t, sarama.WaitForLocal, kafkaSink.config.Producer.RequiredAcks)
	assert.Equal(t, 1, kafkaSink.config.Producer.Retry.Max)
	assert.Equal(t, 2, kafkaSink.config.Producer.Flush.Bytes)
	assert.Equal(t, 3, kafkaSink.config.Producer.Flush.Messages)
	assert.Equal(t, 10*time.Second, kafkaSink.config.Producer.Flush.Frequency)
}

func TestCreateMetricSinkErrors(t *testing.T) {
	for name, config := range map[string]KafkaMetricSinkConfig{
		"no broker": {MetricTopic: "statsd_metrics"},
		"no topic":  {Broker: "testing"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := CreateMetricSink(
				&statsdecoder.Server{}, "kafka",
				logrus.NewEntry(logrus.StandardLogger()),
				statsdecoder.Config{}, config)
			assert.Error(t, err)
		})
	}
}

func TestParseMetricConfig(t *testing.T) {
	parsed, err := ParseMetricConfig("", map[string]interface{}{
		"broker":                  "kafka-1:9092,kafka-2:9092",
		"metric_topic":            "statsd_metrics",
		"metric_buffer_frequency": "250ms",
	})
	require.NoError(t, err)
	assert.Equal(t, KafkaMetricSinkConfig{
		Broker:                "kafka-1:9092,kafka-2:9092",
		MetricTopic:           "statsd_metrics",
		MetricBufferFrequency: 250 * time.Millisecond,
	}, parsed)

	_, err = ParseMetricConfig("", map[string]interface{}{
		"span_topic": "nope",
	})
	assert.Error(t, err)
}
