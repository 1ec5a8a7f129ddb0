package statsd

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rate(r float64) *float64 {
	return &r
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Line
		err   error
	}{
		{
			name:  "gauge",
			input: "foo:123451|g",
			want:  Line{Name: "foo", Code: "g", Type: GaugeMetric, Value: 123451},
		},
		{
			name:  "negative counter",
			input: "foo:-123451|c",
			want:  Line{Name: "foo", Code: "c", Type: CounterMetric, Value: -123451},
		},
		{
			name:  "counter with sample rate",
			input: "foo:-123451|c@0.1",
			want: Line{
				Name: "foo", Code: "c", Type: CounterMetric, Value: -123451,
				SampleRate: rate(0.1),
			},
		},
		{
			name:  "timer",
			input: "foo:123451|ms",
			want:  Line{Name: "foo", Code: "ms", Type: TimerMetric, Value: 123451},
		},
		{
			name:  "histogram",
			input: "foo:123451|h",
			want:  Line{Name: "foo", Code: "h", Type: HistogramMetric, Value: 123451},
		},
		{
			name:  "meter",
			input: "foo:123451|m",
			want:  Line{Name: "foo", Code: "m", Type: MeterMetric, Value: 123451},
		},
		{
			name:  "fractional value",
			input: "a.b.c:0.25|g",
			want:  Line{Name: "a.b.c", Code: "g", Type: GaugeMetric, Value: 0.25},
		},
		{
			name:  "negative fractional value",
			input: "a.b.c:-.5|c",
			want:  Line{Name: "a.b.c", Code: "c", Type: CounterMetric, Value: -0.5},
		},
		{
			name:  "sample rate on gauge is discarded",
			input: "foo:123451|g@0.5",
			want:  Line{Name: "foo", Code: "g", Type: GaugeMetric, Value: 123451},
		},
		{
			name:  "sample rate on timer is discarded",
			input: "foo:12|ms@0.5",
			want:  Line{Name: "foo", Code: "ms", Type: TimerMetric, Value: 12},
		},
		{
			name:  "unknown type code",
			input: "foo:1|s",
			want:  Line{Name: "foo", Code: "s", Type: UnknownMetric, Value: 1},
		},
		{
			name:  "type codes are case sensitive",
			input: "foo:1|G",
			want:  Line{Name: "foo", Code: "G", Type: UnknownMetric, Value: 1},
		},
		{
			name:  "empty type code",
			input: "foo:1|",
			want:  Line{Name: "foo", Code: "", Type: UnknownMetric, Value: 1},
		},
		{
			name:  "dogstatsd tags end up in the type code",
			input: "foo:1|c|#env:prod",
			want:  Line{Name: "foo", Code: "c|#env:prod", Type: UnknownMetric, Value: 1},
		},
		{
			name:  "name containing a colon",
			input: "host:web01:42|g",
			want:  Line{Name: "host:web01", Code: "g", Type: GaugeMetric, Value: 42},
		},
		{
			name:  "name containing a colon and a numeric segment",
			input: "a:1:2|c@0.5",
			want: Line{
				Name: "a:1", Code: "c", Type: CounterMetric, Value: 2,
				SampleRate: rate(0.5),
			},
		},
		{
			name:  "zero sample rate on a counter",
			input: "foo:1|c@0",
			want: Line{
				Name: "foo", Code: "c", Type: CounterMetric, Value: 1,
				SampleRate: rate(0),
			},
		},
		{
			name:  "zero sample rate with a fraction on a counter",
			input: "foo:1|c@0.0",
			want: Line{
				Name: "foo", Code: "c", Type: CounterMetric, Value: 1,
				SampleRate: rate(0),
			},
		},
		{
			name:  "value too large for a float64",
			input: "foo:1" + strings.Repeat("0", 400) + "|g",
			want:  Line{Name: "foo", Code: "g", Type: GaugeMetric, Value: math.Inf(1)},
		},
		{
			name:  "negative value too large for a float64",
			input: "foo:-1" + strings.Repeat("0", 400) + "|c",
			want:  Line{Name: "foo", Code: "c", Type: CounterMetric, Value: math.Inf(-1)},
		},
		{
			name:  "empty line",
			input: "",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "whitespace",
			input: "   ",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "missing name",
			input: ":1|c",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "missing value",
			input: "foo:|c",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "missing pipe",
			input: "foo:1",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "non numeric value",
			input: "foo:bar|c",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "empty sample rate",
			input: "foo:1|c@",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "negative sample rate",
			input: "foo:1|c@-0.5",
			err:   ErrGrammarMismatch,
		},
		{
			name:  "value with two dots",
			input: "foo:1.2.3|c",
			err:   ErrInvalidNumber,
		},
		{
			name:  "value with an inner minus",
			input: "foo:1-2|g",
			err:   ErrInvalidNumber,
		},
		{
			name:  "lone minus",
			input: "foo:-|g",
			err:   ErrInvalidNumber,
		},
		{
			name:  "sample rate with two dots",
			input: "foo:1|c@0.1.2",
			err:   ErrInvalidNumber,
		},
		{
			name:  "unparseable sample rate on a gauge",
			input: "foo:1|g@.",
			err:   ErrInvalidNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.input)
			if tt.err != nil {
				require.Error(t, err)
				assert.Equal(t, tt.err, errors.Cause(err))
				assert.Equal(t, Line{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineZeroSampleRateOnGauge(t *testing.T) {
	line, err := ParseLine("foo:1|g@0")
	require.NoError(t, err)
	assert.Nil(t, line.SampleRate)
}

func TestMetricTypeOf(t *testing.T) {
	codes := map[string]MetricType{
		"g":  GaugeMetric,
		"c":  CounterMetric,
		"ms": TimerMetric,
		"h":  HistogramMetric,
		"m":  MeterMetric,
		"":   UnknownMetric,
		"s":  UnknownMetric,
		"C":  UnknownMetric,
		"g ": UnknownMetric,
		"d":  UnknownMetric,
	}
	for code, want := range codes {
		assert.Equal(t, want, MetricTypeOf(code), "code %q", code)
	}
}

func TestMetricTypeText(t *testing.T) {
	for mtype := UnknownMetric; mtype <= MeterMetric; mtype++ {
		text, err := mtype.MarshalText()
		require.NoError(t, err)

		var parsed MetricType
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, mtype, parsed)
	}

	var parsed MetricType
	assert.Error(t, parsed.UnmarshalText([]byte("set")))
	assert.Equal(t, "unknown", MetricType(42).String())
}

func BenchmarkParseLine(b *testing.B) {
	lines := []string{
		"foo:123451|g",
		"a.b.c:-1|c@0.1",
		"request.latency:12.5|ms",
		"garbage",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ParseLine(lines[i%len(lines)])
	}
}
