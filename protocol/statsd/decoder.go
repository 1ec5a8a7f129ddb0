package statsd

import (
	"io"
	"net/netip"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DecodeStats describes what happened to the lines of one packet.
type DecodeStats struct {
	Lines   int
	Decoded int
	// DecodedByType is indexed by MetricType.
	DecodedByType [MeterMetric + 1]int
	// Dropped is keyed by DropReason.
	Dropped map[string]int
}

// Decoder turns statsd packets into metrics of type M. A Decoder holds no
// mutable state and may be shared between goroutines.
type Decoder[M any] struct {
	// Parse splits one line into its fields. Defaults to ParseLine.
	Parse LineParser
	// Factory builds a metric from parsed fields. Required.
	Factory MetricFactory[M]
	Logger  *logrus.Entry
}

// NewDecoder returns a Decoder using ParseLine and the given factory. A nil
// logger discards all output.
func NewDecoder[M any](factory MetricFactory[M], logger *logrus.Entry) *Decoder[M] {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = logrus.NewEntry(discard)
	}
	return &Decoder[M]{
		Parse:   ParseLine,
		Factory: factory,
		Logger:  logger,
	}
}

var defaultDecoder = NewDecoder[Metric](NewMetric, nil)

// Decode decodes a packet into Metric values using the default parser and
// factory.
func Decode(payload []byte, sender, recipient netip.AddrPort) ([]Metric, error) {
	return defaultDecoder.Decode(payload, sender, recipient)
}

// Decode splits payload into lines and parses each of them, attributing every
// metric to sender and recipient. Lines that cannot be parsed are skipped and
// the remaining metrics keep their line order. The only error is a
// *PayloadError for a packet that is not UTF-8 text; an empty payload is
// simply empty.
func (d *Decoder[M]) Decode(payload []byte, sender, recipient netip.AddrPort) ([]M, error) {
	metrics, _, err := d.DecodeWithStats(payload, sender, recipient)
	return metrics, err
}

// DecodeWithStats is Decode, also reporting per-line outcomes.
func (d *Decoder[M]) DecodeWithStats(
	payload []byte, sender, recipient netip.AddrPort,
) ([]M, DecodeStats, error) {
	stats := DecodeStats{}
	if len(payload) == 0 {
		return nil, stats, nil
	}
	if !utf8.Valid(payload) {
		return nil, stats, &PayloadError{
			Sender:    sender,
			Recipient: recipient,
			Err:       ErrInvalidEncoding,
		}
	}

	parse := d.Parse
	if parse == nil {
		parse = ParseLine
	}
	trace := d.Logger != nil && d.Logger.Logger.IsLevelEnabled(logrus.TraceLevel)

	metrics := make([]M, 0, 1)
	lines := NewLineSplitter(payload)
	for lines.Next() {
		stats.Lines++
		input := string(lines.Chunk())
		if trace {
			d.Logger.WithField("input", input).Trace("parsing line")
		}

		line, err := parse(input)
		if err != nil {
			reason := DropReason(err)
			if stats.Dropped == nil {
				stats.Dropped = map[string]int{}
			}
			stats.Dropped[reason]++
			if trace {
				d.Logger.WithError(err).WithFields(logrus.Fields{
					"input":  input,
					"reason": reason,
				}).Trace("dropping line")
			}
			continue
		}

		if trace {
			fields := logrus.Fields{
				"name":  line.Name,
				"type":  line.Type,
				"value": line.Value,
			}
			if line.SampleRate != nil {
				fields["sample_rate"] = *line.SampleRate
			}
			d.Logger.WithFields(fields).Trace("parsed line")
		}

		metrics = append(metrics, d.Factory(
			line.Name, line.Value, line.SampleRate, line.Type, sender, recipient))
		stats.Decoded++
		if line.Type >= 0 && int(line.Type) < len(stats.DecodedByType) {
			stats.DecodedByType[line.Type]++
		}
	}
	return metrics, stats, nil
}
