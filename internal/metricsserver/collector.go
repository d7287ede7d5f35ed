// Package metricsserver exposes a Device's Metrics as Prometheus gauges and
// counters over HTTP, the way the teacher's ublk binaries expose queue
// depth and I/O latency to an operator's scrape target.
package metricsserver

import (
	"github.com/prometheus/client_golang/prometheus"

	aesdlog "github.com/aesdlog/aesdlogd"
)

// Collector adapts a *aesdlog.Metrics snapshot into Prometheus descriptors,
// avoiding a second set of atomic counters duplicating the ones on Device.
type Collector struct {
	metrics *aesdlog.Metrics

	readOps, writeOps, seekOps, ioctlOps     *prometheus.Desc
	readBytes, writeBytes                    *prometheus.Desc
	readErrors, writeErrors, seekErrors       *prometheus.Desc
	ioctlErrors                               *prometheus.Desc
	evictedEntries, frameTooLargeErrors        *prometheus.Desc
	connectionsHandled, connectionsActive      *prometheus.Desc
	timestampsEmitted                         *prometheus.Desc
	averageLatencySeconds                     *prometheus.Desc
}

// NewCollector returns a prometheus.Collector backed by metrics.
func NewCollector(metrics *aesdlog.Metrics) *Collector {
	return &Collector{
		metrics: metrics,

		readOps:  prometheus.NewDesc("aesdlog_read_ops_total", "Total read() calls.", nil, nil),
		writeOps: prometheus.NewDesc("aesdlog_write_ops_total", "Total write() calls.", nil, nil),
		seekOps:  prometheus.NewDesc("aesdlog_seek_ops_total", "Total seek() calls.", nil, nil),
		ioctlOps: prometheus.NewDesc("aesdlog_ioctl_ops_total", "Total ioctl(SEEK_TO) calls.", nil, nil),

		readBytes:  prometheus.NewDesc("aesdlog_read_bytes_total", "Total bytes returned by read().", nil, nil),
		writeBytes: prometheus.NewDesc("aesdlog_write_bytes_total", "Total bytes accepted by write().", nil, nil),

		readErrors:  prometheus.NewDesc("aesdlog_read_errors_total", "Total failed read() calls.", nil, nil),
		writeErrors: prometheus.NewDesc("aesdlog_write_errors_total", "Total failed write() calls.", nil, nil),
		seekErrors:  prometheus.NewDesc("aesdlog_seek_errors_total", "Total failed seek() calls.", nil, nil),
		ioctlErrors: prometheus.NewDesc("aesdlog_ioctl_errors_total", "Total failed ioctl() calls.", nil, nil),

		evictedEntries:      prometheus.NewDesc("aesdlog_evicted_entries_total", "Total entries evicted on a full log.", nil, nil),
		frameTooLargeErrors: prometheus.NewDesc("aesdlog_frame_too_large_total", "Total writes rejected for exceeding MAX_WRITE.", nil, nil),

		connectionsHandled: prometheus.NewDesc("aesdlog_connections_handled_total", "Total TCP connections accepted.", nil, nil),
		connectionsActive:  prometheus.NewDesc("aesdlog_connections_active", "Connections currently being handled.", nil, nil),
		timestampsEmitted:  prometheus.NewDesc("aesdlog_timestamps_emitted_total", "Total timestamp lines appended to the sink.", nil, nil),

		averageLatencySeconds: prometheus.NewDesc("aesdlog_average_latency_seconds", "Average per-operation latency across all instrumented operations.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.readOps, c.writeOps, c.seekOps, c.ioctlOps,
		c.readBytes, c.writeBytes,
		c.readErrors, c.writeErrors, c.seekErrors, c.ioctlErrors,
		c.evictedEntries, c.frameTooLargeErrors,
		c.connectionsHandled, c.connectionsActive, c.timestampsEmitted,
		c.averageLatencySeconds,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.readOps, prometheus.CounterValue, float64(snap.ReadOps))
	ch <- prometheus.MustNewConstMetric(c.writeOps, prometheus.CounterValue, float64(snap.WriteOps))
	ch <- prometheus.MustNewConstMetric(c.seekOps, prometheus.CounterValue, float64(snap.SeekOps))
	ch <- prometheus.MustNewConstMetric(c.ioctlOps, prometheus.CounterValue, float64(snap.IoctlOps))

	ch <- prometheus.MustNewConstMetric(c.readBytes, prometheus.CounterValue, float64(snap.ReadBytes))
	ch <- prometheus.MustNewConstMetric(c.writeBytes, prometheus.CounterValue, float64(snap.WriteBytes))

	ch <- prometheus.MustNewConstMetric(c.readErrors, prometheus.CounterValue, float64(snap.ReadErrors))
	ch <- prometheus.MustNewConstMetric(c.writeErrors, prometheus.CounterValue, float64(snap.WriteErrors))
	ch <- prometheus.MustNewConstMetric(c.seekErrors, prometheus.CounterValue, float64(snap.SeekErrors))
	ch <- prometheus.MustNewConstMetric(c.ioctlErrors, prometheus.CounterValue, float64(snap.IoctlErrors))

	ch <- prometheus.MustNewConstMetric(c.evictedEntries, prometheus.CounterValue, float64(snap.EvictedEntries))
	ch <- prometheus.MustNewConstMetric(c.frameTooLargeErrors, prometheus.CounterValue, float64(snap.FrameTooLargeErrors))

	ch <- prometheus.MustNewConstMetric(c.connectionsHandled, prometheus.CounterValue, float64(snap.ConnectionsHandled))
	ch <- prometheus.MustNewConstMetric(c.connectionsActive, prometheus.GaugeValue, float64(snap.ConnectionsActive))
	ch <- prometheus.MustNewConstMetric(c.timestampsEmitted, prometheus.CounterValue, float64(snap.TimestampsEmitted))

	ch <- prometheus.MustNewConstMetric(c.averageLatencySeconds, prometheus.GaugeValue, snap.AverageLatencyNs/1e9)
}
