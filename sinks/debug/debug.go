package debug

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/sinks"
)

type debugMetricSink struct {
	name string
	log  *logrus.Entry
	mtx  sync.Mutex
}

var _ sinks.MetricSink = &debugMetricSink{}

func ParseConfig(
	name string, config interface{},
) (statsdecoder.MetricSinkConfig, error) {
	return nil, nil
}

// Create returns a sink that logs every metric at debug level. Nothing is
// logged unless the server runs with debug enabled.
func Create(
	server *statsdecoder.Server, name string, logger *logrus.Entry,
	config statsdecoder.Config, sinkConfig statsdecoder.MetricSinkConfig,
) (sinks.MetricSink, error) {
	return NewDebugMetricSink(name, logger), nil
}

func NewDebugMetricSink(name string, log *logrus.Entry) sinks.MetricSink {
	return &debugMetricSink{name: name, log: log}
}

func (b *debugMetricSink) Name() string {
	return b.name
}

func (b *debugMetricSink) Start(context.Context) error {
	return nil
}

func (b *debugMetricSink) Ingest(ctx context.Context, metrics []statsd.Metric) error {
	if len(metrics) == 0 || !b.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return nil
	}
	// keeps the lines of one batch together
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.log.Debugf("Ingesting %d metrics:", len(metrics))
	for _, m := range metrics {
		fields := logrus.Fields{
			"sender":    m.Sender,
			"recipient": m.Recipient,
		}
		if m.SampleRate != nil {
			fields["sample_rate"] = *m.SampleRate
		}
		b.log.WithFields(fields).Debugf("  %s: %s = %f", m.Type, m.Name, m.Value)
	}
	return nil
}

func (b *debugMetricSink) Stop() {}
