package statsdecoder

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/statsdecoder/protocol"
	"github.com/stripe/statsdecoder/util/config"
)

// EnvPrefix prefixes every environment variable that overrides a config
// key, e.g. STATSDECODER_NUMWORKERS.
const EnvPrefix = "STATSDECODER"

const (
	defaultBufferSizeBytes        = 2 * 1048576
	defaultMetricMaxLength        = 4096
	defaultRuntimeMetricsInterval = 10 * time.Second
	defaultShutdownTimeout        = 10 * time.Second
	defaultUniqueNamesInterval    = 10 * time.Second
	defaultWorkerQueueSize        = 1024
)

// configTemplateData is what a config file can refer to through
// text/template, e.g. {{ .Env.HOST_IP }}.
type configTemplateData struct {
	Env map[string]string
}

func environment() map[string]string {
	env := map[string]string{}
	for _, pair := range os.Environ() {
		key, value, ok := strings.Cut(pair, "=")
		if ok {
			env[key] = value
		}
	}
	return env
}

// ReadConfig unmarshals the config file at path, applies environment
// overrides and defaults, and validates the result.
func ReadConfig(path string) (Config, error) {
	conf, err := config.ReadConfig[Config](
		path, configTemplateData{Env: environment()}, EnvPrefix)
	if err != nil {
		return Config{}, err
	}
	return finishConfig(*conf)
}

// ParseConfig is ReadConfig for a config that is already in memory.
func ParseConfig(data []byte) (Config, error) {
	conf, err := config.ParseConfig[Config](
		data, configTemplateData{Env: environment()}, EnvPrefix)
	if err != nil {
		return Config{}, err
	}
	return finishConfig(*conf)
}

func finishConfig(conf Config) (Config, error) {
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c *Config) applyDefaults() {
	if c.Hostname == "" && !c.OmitEmptyHostname {
		c.Hostname, _ = os.Hostname()
	}
	if c.MetricMaxLength == 0 {
		c.MetricMaxLength = defaultMetricMaxLength
	}
	if c.NumReaders == 0 {
		c.NumReaders = 1
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = runtime.NumCPU()
	}
	if c.ReadBufferSizeBytes == 0 {
		c.ReadBufferSizeBytes = defaultBufferSizeBytes
	}
	if c.RuntimeMetricsInterval == 0 {
		c.RuntimeMetricsInterval = defaultRuntimeMetricsInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.UniqueNamesInterval == 0 {
		c.UniqueNamesInterval = defaultUniqueNamesInterval
	}
	if c.WorkerQueueSize == 0 {
		c.WorkerQueueSize = defaultWorkerQueueSize
	}
}

// Validate checks a config that already had its defaults applied.
func (c Config) Validate() error {
	if len(c.StatsdListenAddresses) == 0 {
		return errors.New("statsd_listen_addresses must not be empty")
	}
	for _, address := range c.StatsdListenAddresses {
		if _, err := protocol.ResolveAddr(address.String()); err != nil {
			return errors.Wrapf(err, "invalid statsd listen address %q", address.String())
		}
	}

	positive := []struct {
		key   string
		value int
	}{
		{"metric_max_length", c.MetricMaxLength},
		{"num_readers", c.NumReaders},
		{"num_workers", c.NumWorkers},
		{"read_buffer_size_bytes", c.ReadBufferSizeBytes},
		{"worker_queue_size", c.WorkerQueueSize},
	}
	for _, field := range positive {
		if field.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", field.key, field.value)
		}
	}
	if c.ShutdownTimeout < 0 || c.RuntimeMetricsInterval < 0 || c.UniqueNamesInterval < 0 {
		return errors.New("durations must not be negative")
	}

	names := map[string]struct{}{}
	for index, sink := range c.MetricSinks {
		if sink.Kind == "" {
			return fmt.Errorf("metric_sinks[%d] is missing a kind", index)
		}
		if sink.Name == "" {
			return fmt.Errorf("metric_sinks[%d] is missing a name", index)
		}
		if _, ok := names[sink.Name]; ok {
			return fmt.Errorf("duplicate metric sink name %q", sink.Name)
		}
		names[sink.Name] = struct{}{}
	}
	return nil
}
