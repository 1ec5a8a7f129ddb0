package mock

import (
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/sinks"
)

type MockMetricSinkFactory struct {
	Controller *gomock.Controller
	Sinks      map[string]*MockMetricSink
}

func NewMockMetricSinkFactory(ctrl *gomock.Controller) *MockMetricSinkFactory {
	return &MockMetricSinkFactory{
		Controller: ctrl,
		Sinks:      map[string]*MockMetricSink{},
	}
}

func (factory *MockMetricSinkFactory) ParseConfig(
	name string, config interface{},
) (statsdecoder.MetricSinkConfig, error) {
	return config, nil
}

func (factory *MockMetricSinkFactory) CreateMetricSink(
	server *statsdecoder.Server, name string, logger *logrus.Entry,
	config statsdecoder.Config, sinkConfig statsdecoder.MetricSinkConfig,
) (sinks.MetricSink, error) {
	sink := NewMockMetricSink(factory.Controller)
	// Have the mock Name method always return the passed in name, since each sink
	// should have this behavior.
	sink.EXPECT().Name().AnyTimes().Return(name)
	factory.Sinks[name] = sink
	return sink, nil
}
