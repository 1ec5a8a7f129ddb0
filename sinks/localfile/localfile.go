package localfile

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/sinks"
	"github.com/stripe/statsdecoder/util"
)

type LocalFileSinkConfig struct {
	Delimiter util.Rune `yaml:"delimiter"`
	FlushFile string    `yaml:"flush_file"`
}

// LocalFileSink appends every ingested batch to a file as a gzip member
// holding one delimited row per metric.
type LocalFileSink struct {
	Delimiter  rune
	FilePath   string
	FileSystem FileSystem
	Logger     *logrus.Entry
	// Now stamps each row. Defaults to time.Now.
	Now      func() time.Time
	hostname string
	mtx      sync.Mutex
	name     string
}

var _ sinks.MetricSink = &LocalFileSink{}

type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
}

type File interface {
	Close() error
	Write(p []byte) (n int, err error)
}

type osFS struct{}

func (osFS) OpenFile(
	name string, flag int, perm os.FileMode,
) (File, error) {
	return os.OpenFile(name, flag, perm)
}

// ParseConfig decodes the map config for a local file sink into a
// LocalFileSinkConfig struct.
func ParseConfig(
	name string, config interface{},
) (statsdecoder.MetricSinkConfig, error) {
	localFileConfig := LocalFileSinkConfig{}
	err := util.DecodeConfig(name, config, &localFileConfig)
	if err != nil {
		return nil, err
	}
	if localFileConfig.FlushFile == "" {
		return nil, errors.New("flush_file must be set")
	}
	if localFileConfig.Delimiter == 0 {
		localFileConfig.Delimiter = '\t'
	}
	return localFileConfig, nil
}

// Create creates a new local file sink for metrics. This function should match
// the signature of a value in statsdecoder.MetricSinkTypes, and is intended
// to be passed into statsdecoder.NewFromConfig to be called based on the
// provided configuration.
func Create(
	server *statsdecoder.Server, name string, logger *logrus.Entry,
	config statsdecoder.Config, sinkConfig statsdecoder.MetricSinkConfig,
) (sinks.MetricSink, error) {
	localFileConfig, ok := sinkConfig.(LocalFileSinkConfig)
	if !ok {
		return nil, errors.New("invalid sink config type")
	}

	return NewLocalFileSink(
		localFileConfig, osFS{}, server.Hostname, logger, name,
	), nil
}

func NewLocalFileSink(
	config LocalFileSinkConfig, filesystem FileSystem, hostname string,
	logger *logrus.Entry, name string,
) *LocalFileSink {
	return &LocalFileSink{
		Delimiter:  rune(config.Delimiter),
		FilePath:   config.FlushFile,
		FileSystem: filesystem,
		Logger:     logger,
		Now:        time.Now,
		hostname:   hostname,
		name:       name,
	}
}

func (sink *LocalFileSink) Start(context.Context) error {
	return nil
}

// Ingest appends one row per metric: name, type, value, sample rate,
// sender, recipient, hostname and the time of ingestion. Empty columns
// stand for a missing sample rate or address.
func (sink *LocalFileSink) Ingest(
	ctx context.Context, metrics []statsd.Metric,
) error {
	if len(metrics) == 0 {
		return nil
	}
	sink.mtx.Lock()
	defer sink.mtx.Unlock()

	file, err := sink.FileSystem.OpenFile(
		sink.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("couldn't open %s for appending: %s", sink.FilePath, err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	csvWriter := csv.NewWriter(gzipWriter)
	csvWriter.Comma = sink.Delimiter

	timestamp := sink.Now().UTC().Format(time.RFC3339)
	for _, metric := range metrics {
		if err := csvWriter.Write(
			encodeMetric(metric, sink.hostname, timestamp)); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func encodeMetric(metric statsd.Metric, hostname, timestamp string) []string {
	sampleRate := ""
	if metric.SampleRate != nil {
		sampleRate = strconv.FormatFloat(*metric.SampleRate, 'f', -1, 64)
	}
	return []string{
		metric.Name,
		metric.Type.String(),
		strconv.FormatFloat(metric.Value, 'f', -1, 64),
		sampleRate,
		addrString(metric.Sender),
		addrString(metric.Recipient),
		hostname,
		timestamp,
	}
}

func addrString(ap netip.AddrPort) string {
	if !ap.IsValid() {
		return ""
	}
	return ap.String()
}

// Name is the name of the sink, as given in its config.
func (sink *LocalFileSink) Name() string {
	return sink.name
}

func (sink *LocalFileSink) Stop() {}
