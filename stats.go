package statsdecoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stripe/statsdecoder/protocol/statsd"
)

// listenerStats are the decoder's own counters, exposed at /metrics.
type listenerStats struct {
	packetsReceived prometheus.Counter
	packetErrors    *prometheus.CounterVec
	linesDropped    *prometheus.CounterVec
	metricsDecoded  *prometheus.CounterVec
	batchesDropped  prometheus.Counter
}

func newListenerStats(registerer prometheus.Registerer) *listenerStats {
	stats := &listenerStats{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsdecoder",
			Name:      "packets_received_total",
			Help:      "Datagrams read from every statsd listener.",
		}),
		packetErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statsdecoder",
			Name:      "packet_errors_total",
			Help:      "Datagrams discarded without decoding any line.",
		}, []string{"reason"}),
		linesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statsdecoder",
			Name:      "lines_dropped_total",
			Help:      "Lines that did not produce a metric.",
		}, []string{"reason"}),
		metricsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statsdecoder",
			Name:      "metrics_decoded_total",
			Help:      "Metrics decoded, by metric type.",
		}, []string{"type"}),
		batchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsdecoder",
			Name:      "batches_dropped_total",
			Help:      "Decoded packets dropped because the worker queue was full.",
		}),
	}
	registerer.MustRegister(
		stats.packetsReceived,
		stats.packetErrors,
		stats.linesDropped,
		stats.metricsDecoded,
		stats.batchesDropped,
	)
	return stats
}

// newRegistry returns a registry carrying the standard process and Go
// runtime collectors.
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func (s *listenerStats) observe(stats statsd.DecodeStats) {
	for reason, count := range stats.Dropped {
		s.linesDropped.WithLabelValues(reason).Add(float64(count))
	}
	for mtype, count := range stats.DecodedByType {
		if count > 0 {
			s.metricsDecoded.WithLabelValues(statsd.MetricType(mtype).String()).Add(float64(count))
		}
	}
}
