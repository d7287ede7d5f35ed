package aesdlog

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing — the same shape as the
// teacher's ublk.Metrics histogram.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a Device and, when wired into
// the server, for the Connection Handler and Timestamp Producer as well.
type Metrics struct {
	ReadOps  atomic.Uint64
	WriteOps atomic.Uint64
	SeekOps  atomic.Uint64
	IoctlOps atomic.Uint64

	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64

	ReadErrors  atomic.Uint64
	WriteErrors atomic.Uint64
	SeekErrors  atomic.Uint64
	IoctlErrors atomic.Uint64

	EvictedEntries      atomic.Uint64
	FrameTooLargeErrors atomic.Uint64

	ConnectionsHandled atomic.Uint64
	ConnectionsActive  atomic.Int64
	TimestampsEmitted  atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a Metrics instance stamped with the current time as
// StartTime.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bound := range LatencyBuckets {
		if latencyNs <= bound {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordRead records a read() call's outcome.
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.ReadBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordWrite records a write() call's outcome.
func (m *Metrics) RecordWrite(bytes uint64, latencyNs uint64, success bool) {
	m.WriteOps.Add(1)
	if success {
		m.WriteBytes.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordSeek records a seek() call's outcome.
func (m *Metrics) RecordSeek(latencyNs uint64, success bool) {
	m.SeekOps.Add(1)
	if !success {
		m.SeekErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordIoctl records an ioctl(SEEK_TO) call's outcome.
func (m *Metrics) RecordIoctl(latencyNs uint64, success bool) {
	m.IoctlOps.Add(1)
	if !success {
		m.IoctlErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordEviction increments the count of entries evicted on a full-log
// append.
func (m *Metrics) RecordEviction() {
	m.EvictedEntries.Add(1)
}

// RecordFrameTooLarge increments the FrameTooLarge error count.
func (m *Metrics) RecordFrameTooLarge() {
	m.FrameTooLargeErrors.Add(1)
}

// ConnectionOpened marks the start of a handled connection.
func (m *Metrics) ConnectionOpened() {
	m.ConnectionsHandled.Add(1)
	m.ConnectionsActive.Add(1)
}

// ConnectionClosed marks the end of a handled connection.
func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Add(-1)
}

// RecordTimestamp increments the count of timestamp lines emitted.
func (m *Metrics) RecordTimestamp() {
	m.TimestampsEmitted.Add(1)
}

// Stop stamps StopTime with the current time.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, copyable view of Metrics.
type MetricsSnapshot struct {
	ReadOps, WriteOps, SeekOps, IoctlOps             uint64
	ReadBytes, WriteBytes                            uint64
	ReadErrors, WriteErrors, SeekErrors, IoctlErrors  uint64
	EvictedEntries, FrameTooLargeErrors               uint64
	ConnectionsHandled                                uint64
	ConnectionsActive                                 int64
	TimestampsEmitted                                 uint64
	AverageLatencyNs                                  float64
	StartTime, StopTime                               int64
}

// Snapshot returns a point-in-time copy of m's counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		ReadOps:             m.ReadOps.Load(),
		WriteOps:            m.WriteOps.Load(),
		SeekOps:             m.SeekOps.Load(),
		IoctlOps:            m.IoctlOps.Load(),
		ReadBytes:           m.ReadBytes.Load(),
		WriteBytes:          m.WriteBytes.Load(),
		ReadErrors:          m.ReadErrors.Load(),
		WriteErrors:         m.WriteErrors.Load(),
		SeekErrors:          m.SeekErrors.Load(),
		IoctlErrors:         m.IoctlErrors.Load(),
		EvictedEntries:      m.EvictedEntries.Load(),
		FrameTooLargeErrors: m.FrameTooLargeErrors.Load(),
		ConnectionsHandled:  m.ConnectionsHandled.Load(),
		ConnectionsActive:   m.ConnectionsActive.Load(),
		TimestampsEmitted:   m.TimestampsEmitted.Load(),
		StartTime:           m.StartTime.Load(),
		StopTime:            m.StopTime.Load(),
	}
	if count := m.OpCount.Load(); count > 0 {
		s.AverageLatencyNs = float64(m.TotalLatencyNs.Load()) / float64(count)
	}
	return s
}
