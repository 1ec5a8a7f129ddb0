package statsdecoder

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/sirupsen/logrus"
	"github.com/stripe/statsdecoder/protocol/statsd"
	"github.com/stripe/statsdecoder/scopedstatsd"
	"github.com/stripe/statsdecoder/sinks"
)

// Worker hands decoded batches to every metric sink, in the order they were
// enqueued.
type Worker struct {
	id     int
	queue  chan []statsd.Metric
	sinks  []sinks.MetricSink
	statsd scopedstatsd.Client
	logger *logrus.Entry

	uniqueMtx   sync.Mutex
	uniqueNames *hyperloglog.Sketch
}

func NewWorker(
	id int, queueSize int, metricSinks []sinks.MetricSink,
	client scopedstatsd.Client, logger *logrus.Entry,
) *Worker {
	return &Worker{
		id:          id,
		queue:       make(chan []statsd.Metric, queueSize),
		sinks:       metricSinks,
		statsd:      scopedstatsd.Ensure(client),
		logger:      logger,
		uniqueNames: hyperloglog.New(),
	}
}

// Enqueue queues a batch without blocking, returning false if the queue is
// full.
func (w *Worker) Enqueue(batch []statsd.Metric) bool {
	select {
	case w.queue <- batch:
		return true
	default:
		return false
	}
}

// Work ingests batches until Stop is called and the queue is drained.
func (w *Worker) Work(ctx context.Context) {
	for batch := range w.queue {
		w.Ingest(ctx, batch)
	}
}

func (w *Worker) Ingest(ctx context.Context, batch []statsd.Metric) {
	w.uniqueMtx.Lock()
	for _, metric := range batch {
		w.uniqueNames.Insert([]byte(metric.Name))
	}
	w.uniqueMtx.Unlock()

	for _, sink := range w.sinks {
		tags := []string{"sink:" + sink.Name()}
		start := time.Now()
		err := sink.Ingest(ctx, batch)
		w.statsd.Timing(sinks.MetricKeyMetricIngestDuration, time.Since(start), tags, 1.0)
		if err != nil {
			w.statsd.Count(sinks.MetricKeyIngestErrors, 1, tags, 1.0)
			w.logger.WithError(err).WithField("sink", sink.Name()).
				Warn("Error ingesting metrics")
			continue
		}
		w.statsd.Count(
			sinks.MetricKeyTotalMetricsIngested, int64(len(batch)), tags, 1.0)
	}
}

// Stop closes the queue. Enqueue must not be called afterwards.
func (w *Worker) Stop() {
	close(w.queue)
}

// UniqueNames estimates how many distinct metric names the worker has seen
// since the previous call.
func (w *Worker) UniqueNames() uint64 {
	w.uniqueMtx.Lock()
	defer w.uniqueMtx.Unlock()
	estimate := w.uniqueNames.Estimate()
	w.uniqueNames = hyperloglog.New()
	return estimate
}

// workerIndex picks a worker for a sender, so that packets from one sender
// are always ingested in the order they were read.
func workerIndex(sender netip.AddrPort, numWorkers int) int {
	hash := fnv1a.AddString32(fnv1a.Init32, sender.String())
	return int(hash % uint32(numWorkers))
}

func (server *Server) dispatch(metrics []statsd.Metric, sender netip.AddrPort) {
	worker := server.Workers[workerIndex(sender, len(server.Workers))]
	if !worker.Enqueue(metrics) {
		server.stats.batchesDropped.Inc()
		server.Statsd.Count("worker.dropped_batches_total", 1,
			[]string{fmt.Sprintf("worker:%d", worker.id)}, 1.0)
	}
}

func (server *Server) reportUniqueNames(ctx context.Context) {
	ticker := time.NewTicker(server.Config.UniqueNamesInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, worker := range server.Workers {
				server.Statsd.Gauge("worker.unique_names", float64(worker.UniqueNames()),
					[]string{fmt.Sprintf("worker:%d", worker.id)}, 1.0)
			}
		case <-ctx.Done():
			return
		}
	}
}
