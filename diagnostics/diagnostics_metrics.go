// Package diagnostics reports the decoder process's own runtime health
// through statsd.
package diagnostics

import (
	"context"
	"runtime"
	"time"

	"github.com/stripe/statsdecoder/scopedstatsd"
)

// CollectDiagnosticsMetrics reports uptime and memory statistics every
// interval until ctx is cancelled.
func CollectDiagnosticsMetrics(
	ctx context.Context, statsd scopedstatsd.Client, interval time.Duration,
	tags []string,
) {
	var memstatsCurrent runtime.MemStats
	var memstatsPrev runtime.MemStats

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			CollectUptimeMetrics(statsd, interval, tags)
			CollectGoroutineMetrics(statsd, runtime.NumGoroutine(), tags)
			runtime.ReadMemStats(&memstatsCurrent)
			CollectRuntimeMemStats(statsd, &memstatsCurrent, &memstatsPrev, tags)
			memstatsPrev = memstatsCurrent
		case <-ctx.Done():
			return
		}
	}
}

func CollectUptimeMetrics(statsd scopedstatsd.Client, interval time.Duration, tags []string) {
	statsd.Count("uptime_ms", interval.Milliseconds(), tags, 1)
}

func CollectGoroutineMetrics(statsd scopedstatsd.Client, goroutines int, tags []string) {
	statsd.Gauge("goroutines", float64(goroutines), tags, 1)
}

// CollectRuntimeMemStats reports a subset of runtime.MemStats. Cumulative
// counters are reported as the delta since memstatsPrev.
func CollectRuntimeMemStats(
	statsd scopedstatsd.Client, memstatsCurrent *runtime.MemStats,
	memstatsPrev *runtime.MemStats, tags []string,
) {
	gauges := []struct {
		name  string
		value uint64
	}{
		{"mem.sys_bytes", memstatsCurrent.Sys},
		{"mem.mallocs_count", memstatsCurrent.Mallocs - memstatsCurrent.Frees},
		{"mem.heap_alloc_bytes", memstatsCurrent.HeapAlloc},
		{"mem.heap_inuse_bytes", memstatsCurrent.HeapInuse},
		{"mem.heap_objects_count", memstatsCurrent.HeapObjects},
		{"mem.stack_inuse_bytes", memstatsCurrent.StackInuse},
		{"mem.next_gc_bytes", memstatsCurrent.NextGC},
	}
	for _, gauge := range gauges {
		statsd.Gauge(gauge.name, float64(gauge.value), tags, 1)
	}

	statsd.Count("mem.mallocs_total", int64(memstatsCurrent.Mallocs-memstatsPrev.Mallocs), tags, 1)
	statsd.Count("mem.frees_total", int64(memstatsCurrent.Frees-memstatsPrev.Frees), tags, 1)
	statsd.Count("mem.heap_alloc_bytes_total", int64(memstatsCurrent.TotalAlloc-memstatsPrev.TotalAlloc), tags, 1)
	statsd.Count("gc.cycles_total", int64(memstatsCurrent.NumGC-memstatsPrev.NumGC), tags, 1)
	statsd.Count("gc.pause_ns_total", int64(memstatsCurrent.PauseTotalNs-memstatsPrev.PauseTotalNs), tags, 1)
}
