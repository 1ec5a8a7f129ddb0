package statsdecoder

import (
	"time"

	"github.com/stripe/statsdecoder/util"
)

type Config struct {
	Debug                  bool              `yaml:"debug"`
	EnableProfiling        bool              `yaml:"enable_profiling"`
	Hostname               string            `yaml:"hostname"`
	HTTPAddress            string            `yaml:"http_address"`
	MetricMaxLength        int               `yaml:"metric_max_length"`
	MetricSinks            []SinkConfig      `yaml:"metric_sinks"`
	NumReaders             int               `yaml:"num_readers"`
	NumWorkers             int               `yaml:"num_workers"`
	OmitEmptyHostname      bool              `yaml:"omit_empty_hostname"`
	ReadBufferSizeBytes    int               `yaml:"read_buffer_size_bytes"`
	RuntimeMetricsInterval time.Duration     `yaml:"runtime_metrics_interval"`
	SentryDsn              util.StringSecret `yaml:"sentry_dsn"`
	ShutdownTimeout        time.Duration     `yaml:"shutdown_timeout"`
	StatsAddress           string            `yaml:"stats_address"`
	StatsdListenAddresses  []util.Url        `yaml:"statsd_listen_addresses"`
	Tags                   []string          `yaml:"tags"`
	TraceLines             bool              `yaml:"trace_lines"`
	UniqueNamesInterval    time.Duration     `yaml:"unique_names_interval"`
	WorkerQueueSize        int               `yaml:"worker_queue_size"`
}

type SinkConfig struct {
	Kind   string      `yaml:"kind"`
	Name   string      `yaml:"name"`
	Config interface{} `yaml:"config"`
}
