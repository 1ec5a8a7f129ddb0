package blackhole

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/sinks"
)

type blackholeMetricSink struct {
	name string
}

var _ sinks.MetricSink = &blackholeMetricSink{}

// ParseConfig accepts no settings.
func ParseConfig(
	name string, config interface{},
) (statsdecoder.MetricSinkConfig, error) {
	return nil, nil
}

// Create creates a new blackholeMetricSink. This sink does nothing at
// ingest time, effectively "black holing" any metrics it receives. It is
// useful for benchmarking the decoder and for configs that only need
// /metrics.
func Create(
	server *statsdecoder.Server, name string, logger *logrus.Entry,
	config statsdecoder.Config, sinkConfig statsdecoder.MetricSinkConfig,
) (sinks.MetricSink, error) {
	return NewBlackholeMetricSink(name), nil
}

func NewBlackholeMetricSink(name string) *blackholeMetricSink {
	return &blackholeMetricSink{name: name}
}

func (b *blackholeMetricSink) Name() string {
	return b.name
}

func (b *blackholeMetricSink) Start(context.Context) error {
	return nil
}

func (b *blackholeMetricSink) Ingest(context.Context, []statsd.Metric) error {
	return nil
}

func (b *blackholeMetricSink) Stop() {}
