package statsdecoder

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	dogstatsd "github.com/DataDog/datadog-go/statsd"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder/diagnostics"
	"github.com/stripe/statsdecoder/internal/safepool"
	"github.com/stripe/statsdecoder/protocol"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/scopedstatsd"
	"github.com/stripe/statsdecoder/sinks"
	"github.com/stripe/statsdecoder/util/build"
)

// MetricSinkConfig is the parsed, kind-specific configuration of one metric
// sink.
type MetricSinkConfig interface{}

// MetricSinkTypes maps a sink kind, as written in metric_sinks, to the
// functions that parse its config and construct it.
type MetricSinkTypes = map[string]struct {
	// Creates a new metric sink intended to be used by the server.
	Create func(
		*Server, string, *logrus.Entry, Config, MetricSinkConfig,
	) (sinks.MetricSink, error)
	// Parses the config for the sink into a format that is validated and safe
	// to log.
	ParseConfig func(string, interface{}) (MetricSinkConfig, error)
}

type ServerConfig struct {
	Config          Config
	Logger          *logrus.Logger
	MetricSinkTypes MetricSinkTypes
}

type listenAddress struct {
	network string
	addr    net.Addr
}

// A Server reads statsd packets from its listeners, decodes them and
// distributes the metrics to its sinks through a pool of workers.
type Server struct {
	Config   Config
	Hostname string
	Tags     []string
	Statsd   scopedstatsd.Client
	Workers  []*Worker

	decoder             *statsd.Decoder[statsd.Metric]
	httpAddress         string
	httpListener        net.Listener
	httpServer          http.Server
	listenAddresses     []listenAddress
	logger              *logrus.Entry
	metricMaxLength     int
	metricSinks         []sinks.MetricSink
	numReaders          int
	packetPool          *safepool.BufferPool
	readBufferSizeBytes int
	ready               chan struct{}
	readyOnce           sync.Once
	registry            *prometheus.Registry
	shutdownTimeout     time.Duration
	shuttingDown        atomic.Bool
	startErr            error
	stats               *listenerStats
	statsdAddresses     []net.Addr

	readerMtx   sync.Mutex
	readers     []packetReader
	readerWG    sync.WaitGroup
	unixSockets []unixSocket
}

// NewFromConfig creates a new server from a config. Defaults are applied to
// any zero setting, so a Config built by hand behaves like one read by
// ReadConfig.
func NewFromConfig(config ServerConfig) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	conf := config.Config
	conf.MetricSinks = append([]SinkConfig(nil), conf.MetricSinks...)
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if conf.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	if conf.TraceLines {
		logger.SetLevel(logrus.TraceLevel)
	}

	server := &Server{
		Config:              conf,
		Hostname:            conf.Hostname,
		Tags:                append(append([]string{}, conf.Tags...), build.Tags()...),
		httpAddress:         conf.HTTPAddress,
		logger:              logrus.NewEntry(logger),
		metricMaxLength:     conf.MetricMaxLength,
		numReaders:          conf.NumReaders,
		readBufferSizeBytes: conf.ReadBufferSizeBytes,
		ready:               make(chan struct{}),
		registry:            newRegistry(),
		shutdownTimeout:     conf.ShutdownTimeout,
	}
	server.stats = newListenerStats(server.registry)
	server.decoder = statsd.NewDecoder[statsd.Metric](
		statsd.NewMetric, server.logger.WithField("component", "decoder"))
	// one spare byte to detect packets longer than the limit
	server.packetPool = safepool.NewBufferPool(server.metricMaxLength + 1)

	for _, address := range conf.StatsdListenAddresses {
		addr, err := protocol.ResolveAddr(address.String())
		if err != nil {
			return nil, err
		}
		server.listenAddresses = append(server.listenAddresses, listenAddress{
			network: address.Value.Scheme,
			addr:    addr,
		})
	}

	var statsdClient *dogstatsd.Client
	if conf.StatsAddress != "" {
		var err error
		statsdClient, err = dogstatsd.New(
			conf.StatsAddress, dogstatsd.WithNamespace("statsdecoder."),
			dogstatsd.WithoutTelemetry())
		if err != nil {
			return nil, errors.Wrap(err, "failed to create statsd client")
		}
	}
	server.Statsd = scopedstatsd.NewClient(statsdClient, server.Tags)

	if conf.SentryDsn.Value != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:        conf.SentryDsn.Value,
			ServerName: server.Hostname,
			Release:    build.VERSION,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize sentry")
		}
		logger.AddHook(newSentryHook(server.Hostname))
	}

	var err error
	server.metricSinks, err =
		server.createMetricSinks(server.logger, config.MetricSinkTypes)
	if err != nil {
		return nil, err
	}

	server.Workers = make([]*Worker, conf.NumWorkers)
	for i := range server.Workers {
		server.Workers[i] = NewWorker(
			i, conf.WorkerQueueSize, server.metricSinks, server.Statsd,
			server.logger.WithField("worker", i))
	}

	return server, nil
}

// createMetricSinks constructs every configured sink. The parsed config of
// each sink replaces the raw one in server.Config, so the config endpoints
// show what the sink actually uses.
func (server *Server) createMetricSinks(
	logger *logrus.Entry, sinkTypes MetricSinkTypes,
) ([]sinks.MetricSink, error) {
	metricSinks := []sinks.MetricSink{}
	for index, sinkConfig := range server.Config.MetricSinks {
		sinkFactory, ok := sinkTypes[sinkConfig.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown metric sink kind %q", sinkConfig.Kind)
		}
		parsedSinkConfig, err :=
			sinkFactory.ParseConfig(sinkConfig.Name, sinkConfig.Config)
		if err != nil {
			return nil, errors.Wrapf(
				err, "failed to parse config for metric sink %q", sinkConfig.Name)
		}
		server.Config.MetricSinks[index].Config = parsedSinkConfig
		sink, err := sinkFactory.Create(
			server, sinkConfig.Name, logger.WithFields(logrus.Fields{
				"sink_kind": sinkConfig.Kind,
				"sink_name": sinkConfig.Name,
			}), server.Config, parsedSinkConfig)
		if err != nil {
			return nil, errors.Wrapf(
				err, "failed to create metric sink %q", sinkConfig.Name)
		}
		metricSinks = append(metricSinks, sink)
	}
	return metricSinks, nil
}

// Start runs the server until ctx is cancelled or a listener fails, then
// shuts it down. Packets that were already read are delivered to the sinks
// before Start returns, unless that takes longer than the shutdown timeout.
// Start must only be called once.
func (server *Server) Start(ctx context.Context) (err error) {
	defer func() {
		server.markReady(err)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Sinks outlive ctx so that the workers can drain their queues.
	sinkCtx, sinkCancel := context.WithCancel(context.Background())
	defer sinkCancel()

	for index, sink := range server.metricSinks {
		if err := sink.Start(sinkCtx); err != nil {
			for _, started := range server.metricSinks[:index] {
				started.Stop()
			}
			return errors.Wrapf(err, "failed to start metric sink %q", sink.Name())
		}
	}

	workerWG := sync.WaitGroup{}
	for _, worker := range server.Workers {
		workerWG.Add(1)
		go func(worker *Worker) {
			defer workerWG.Done()
			defer func() {
				ConsumePanic(server.Hostname, recover())
			}()
			worker.Work(sinkCtx)
		}(worker)
	}

	startErr := server.startListeners(ctx)

	waitGroup := sync.WaitGroup{}
	var httpError <-chan error
	if startErr == nil && server.httpAddress != "" {
		server.httpListener, startErr = net.Listen("tcp", server.httpAddress)
		if startErr == nil {
			server.httpServer.Handler = server.Handler()
			httpError = startHttpServer(
				ctx, cancel, server.logger, &waitGroup, &server.httpServer,
				server.httpListener, server.shutdownTimeout)
		} else {
			startErr = errors.Wrapf(
				startErr, "failed to listen on %q", server.httpAddress)
		}
	}

	if startErr == nil {
		waitGroup.Add(2)
		go func() {
			defer waitGroup.Done()
			diagnostics.CollectDiagnosticsMetrics(
				ctx, server.Statsd, server.Config.RuntimeMetricsInterval, nil)
		}()
		go func() {
			defer waitGroup.Done()
			server.reportUniqueNames(ctx)
		}()

		server.markReady(nil)
		<-ctx.Done()
		server.logger.Info("Shutting down")
	}
	cancel()

	server.stopReaders()
	for _, worker := range server.Workers {
		worker.Stop()
	}
	if !waitTimeout(&workerWG, server.shutdownTimeout) {
		server.logger.Warn("Timed out waiting for workers, aborting ingestion")
		sinkCancel()
		workerWG.Wait()
	}
	for _, sink := range server.metricSinks {
		sink.Stop()
	}
	waitGroup.Wait()

	if startErr != nil {
		return startErr
	}
	if httpError != nil {
		if err := <-httpError; err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server failed")
		}
	}
	return nil
}

func (server *Server) startListeners(ctx context.Context) error {
	for _, listen := range server.listenAddresses {
		addr, err := server.startStatsd(ctx, listen.network, listen.addr)
		if err != nil {
			return err
		}
		server.statsdAddresses = append(server.statsdAddresses, addr)
	}
	return nil
}

func startHttpServer(
	ctx context.Context, cancel func(), logger *logrus.Entry,
	waitGroup *sync.WaitGroup, server *http.Server, listener net.Listener,
	shutdownTimeout time.Duration,
) <-chan error {
	httpExit := make(chan error, 1)
	logger.WithField("address", listener.Addr()).Info("Serving HTTP")
	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()

		err := server.Serve(listener)
		if err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server closed")
		} else {
			logger.Debug("HTTP server closed")
		}
		httpExit <- err
	}()

	httpError := make(chan error, 1)
	waitGroup.Add(1)
	go func() {
		defer func() {
			listener.Close()
			close(httpError)
			waitGroup.Done()
		}()

		select {
		case err := <-httpExit:
			cancel()
			httpError <- err
		case <-ctx.Done():
			shutdownCtx, shutdownCancel :=
				context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Error shutting down HTTP server")
				httpError <- err
			}
		}
	}()

	return httpError
}

// waitTimeout waits on wg, returning false if that took longer than
// timeout.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// markReady closes ready exactly once, recording whether startup failed.
func (server *Server) markReady(err error) {
	server.readyOnce.Do(func() {
		server.startErr = err
		close(server.ready)
	})
}

// Ready is closed once every listener is accepting packets, or once Start
// has given up. Err tells the two apart.
func (server *Server) Ready() <-chan struct{} {
	return server.ready
}

// Err returns the error that kept Start from becoming ready, or nil. It is
// only valid after Ready is closed.
func (server *Server) Err() error {
	return server.startErr
}

// StatsdAddresses returns the bound address of every statsd listener. It
// is only valid after Ready is closed.
func (server *Server) StatsdAddresses() []net.Addr {
	return server.statsdAddresses
}

// HTTPAddress returns the bound address of the HTTP server, or nil if it is
// disabled. It is only valid after Ready is closed.
func (server *Server) HTTPAddress() net.Addr {
	if server.httpListener == nil {
		return nil
	}
	return server.httpListener.Addr()
}

// Registry exposes the server's own Prometheus metrics.
func (server *Server) Registry() *prometheus.Registry {
	return server.registry
}
