package statsd

import (
	"fmt"
	"net/netip"
)

// MetricType is the kind of a decoded metric, resolved from the type code
// that follows the pipe in a statsd line.
type MetricType int

const (
	UnknownMetric MetricType = iota
	GaugeMetric
	CounterMetric
	TimerMetric
	HistogramMetric
	MeterMetric
)

var metricTypeNames = [...]string{
	UnknownMetric:   "unknown",
	GaugeMetric:     "gauge",
	CounterMetric:   "counter",
	TimerMetric:     "timer",
	HistogramMetric: "histogram",
	MeterMetric:     "meter",
}

func (t MetricType) String() string {
	if t < 0 || int(t) >= len(metricTypeNames) {
		return metricTypeNames[UnknownMetric]
	}
	return metricTypeNames[t]
}

func (t MetricType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MetricType) UnmarshalText(text []byte) error {
	for i, name := range metricTypeNames {
		if name == string(text) {
			*t = MetricType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown metric type %q", text)
}

// MetricTypeOf maps a wire type code to its MetricType. The match is exact
// and case-sensitive; every unrecognized code, including the empty one, is
// UnknownMetric.
func MetricTypeOf(code string) MetricType {
	switch code {
	case "g":
		return GaugeMetric
	case "c":
		return CounterMetric
	case "ms":
		return TimerMetric
	case "h":
		return HistogramMetric
	case "m":
		return MeterMetric
	default:
		return UnknownMetric
	}
}

// Metric is a single decoded statsd line, attributed to the packet that
// carried it. SampleRate is nil unless Type is CounterMetric and the line
// had an @rate suffix.
type Metric struct {
	Name       string         `json:"name"`
	Value      float64        `json:"value"`
	SampleRate *float64       `json:"sample_rate,omitempty"`
	Type       MetricType     `json:"type"`
	Sender     netip.AddrPort `json:"sender"`
	Recipient  netip.AddrPort `json:"recipient"`
}

// Equal reports whether two metrics carry the same values. Sample rates are
// compared by value, not by pointer.
func (m Metric) Equal(other Metric) bool {
	if (m.SampleRate == nil) != (other.SampleRate == nil) {
		return false
	}
	if m.SampleRate != nil && *m.SampleRate != *other.SampleRate {
		return false
	}
	return m.Name == other.Name &&
		m.Value == other.Value &&
		m.Type == other.Type &&
		m.Sender == other.Sender &&
		m.Recipient == other.Recipient
}

// MetricFactory builds the caller's representation of a decoded line. It must
// not retain or mutate anything the decoder passes to it.
type MetricFactory[M any] func(
	name string, value float64, sampleRate *float64, mtype MetricType,
	sender, recipient netip.AddrPort,
) M

// NewMetric is the default MetricFactory.
func NewMetric(
	name string, value float64, sampleRate *float64, mtype MetricType,
	sender, recipient netip.AddrPort,
) Metric {
	return Metric{
		Name:       name,
		Value:      value,
		SampleRate: sampleRate,
		Type:       mtype,
		Sender:     sender,
		Recipient:  recipient,
	}
}

var _ MetricFactory[Metric] = NewMetric
