package statsd

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// linePattern is the whole-line statsd grammar, name:value|type[@rate].
//
// The name group is greedy. Go's regexp picks the submatch a backtracking
// engine would find first, so when a name contains ':' the rightmost colon
// whose tail still forms a valid value|type[@rate] is the delimiter.
var linePattern = regexp.MustCompile(
	`^(?P<name>.+):(?P<value>[-.\d]+)\|(?P<type>[^@]*)(?:@(?P<rate>[\d.]+))?$`)

var (
	nameGroup  = linePattern.SubexpIndex("name")
	valueGroup = linePattern.SubexpIndex("value")
	typeGroup  = linePattern.SubexpIndex("type")
	rateGroup  = linePattern.SubexpIndex("rate")
)

// Line holds the fields of one parsed statsd line.
type Line struct {
	Name string
	// Code is the raw type code, before classification.
	Code       string
	Type       MetricType
	Value      float64
	SampleRate *float64
}

// LineParser parses a single statsd line that has already been separated
// from its packet.
type LineParser func(line string) (Line, error)

var _ LineParser = ParseLine

// ParseLine parses one statsd line of the form name:value|type[@rate].
//
// A sample rate is parsed whenever the suffix is present, but is only kept
// for counters; for every other type the returned SampleRate is nil. A rate
// of zero is kept as zero. Numbers too large for a float64 parse as ±Inf.
// Errors are either ErrGrammarMismatch or wrap ErrInvalidNumber.
func ParseLine(line string) (Line, error) {
	match := linePattern.FindStringSubmatch(line)
	if match == nil {
		return Line{}, ErrGrammarMismatch
	}

	ret := Line{
		Name: match[nameGroup],
		Code: match[typeGroup],
		Type: MetricTypeOf(match[typeGroup]),
	}

	value, err := parseNumber(match[valueGroup])
	if err != nil {
		return Line{}, errors.Wrapf(ErrInvalidNumber, "value %q", match[valueGroup])
	}
	ret.Value = value

	if rateText := match[rateGroup]; rateText != "" {
		rate, err := parseNumber(rateText)
		if err != nil {
			return Line{}, errors.Wrapf(ErrInvalidNumber, "sample rate %q", rateText)
		}
		if ret.Type == CounterMetric {
			ret.SampleRate = &rate
		}
	}

	return ret, nil
}

// parseNumber is strconv.ParseFloat, except that out-of-range input yields
// the ±Inf or 0 that ParseFloat rounds it to.
func parseNumber(text string) (float64, error) {
	f, err := strconv.ParseFloat(text, 64)
	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		return f, nil
	}
	return f, err
}
