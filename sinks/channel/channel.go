package channel

import (
	"context"

	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/sinks"
)

type ChannelMetricSink struct {
	name           string
	metricsChannel chan []statsd.Metric
}

var _ sinks.MetricSink = ChannelMetricSink{}

// NewChannelMetricSink creates a new ChannelMetricSink. This sink writes
// every ingested batch to `ch` such that the test can inspect the metrics
// for correctness.
func NewChannelMetricSink(name string, ch chan []statsd.Metric) ChannelMetricSink {
	return ChannelMetricSink{
		name:           name,
		metricsChannel: ch,
	}
}

func (c ChannelMetricSink) Name() string {
	return c.name
}

func (c ChannelMetricSink) Start(context.Context) error {
	return nil
}

// Ingest blocks until the batch is received or ctx is cancelled.
func (c ChannelMetricSink) Ingest(ctx context.Context, metrics []statsd.Metric) error {
	select {
	case c.metricsChannel <- metrics:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c ChannelMetricSink) Stop() {}
