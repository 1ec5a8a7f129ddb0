package sinks

import (
	"context"

	"github.com/stripe/statsdecoder/protocol/statsd"
)

//go:generate mockgen -source=sinks.go -destination=mock/mock_sinks.go -package=mock

// MetricKeyTotalMetricsIngested is emitted as a counter by the worker for
// each sink after a successful Ingest, tagged with `sink:sink.Name()`.
const MetricKeyTotalMetricsIngested = "sink.metrics_ingested_total"

// MetricKeyMetricIngestDuration is emitted as a timer for each sink by the
// worker, tagged with `sink:sink.Name()`.
const MetricKeyMetricIngestDuration = "sink.metric_ingest_duration_ns"

// MetricKeyIngestErrors counts failed Ingest calls, tagged with
// `sink:sink.Name()`.
const MetricKeyIngestErrors = "sink.ingest_errors_total"

// MetricKeyTotalMetricsDropped should be emitted as a counter by a MetricSink
// if possible. Tagged with `sink:sink.Name()`. Track the number of metrics
// the sink accepted but could not deliver.
const MetricKeyTotalMetricsDropped = "sink.metrics_dropped_total"

// MetricSink receives metrics as soon as a packet has been decoded. Batches
// from a single sender arrive in order, but Ingest may be called from
// several workers at once.
type MetricSink interface {
	Name() string
	// Start finishes setting up the sink and starts any background
	// processing tasks that the sink might have to run. It's invoked when
	// the server starts.
	Start(ctx context.Context) error
	// Ingest receives the metrics decoded from one packet. The sink must
	// **not** mutate the slice or its elements as they are shared with
	// other sinks.
	Ingest(ctx context.Context, metrics []statsd.Metric) error
	// Stop is invoked once no more batches will be ingested.
	Stop()
}
