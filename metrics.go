package mpi

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a
// RuntimeContext: point-to-point send/recv traffic and per-collective
// call counts, plus the same latency histogram machinery the rest of
// the ambient stack uses for I/O latency.
type Metrics struct {
	// Point-to-point operation counters
	SendOps atomic.Uint64 // Total blocking Send calls (Isend alone is not counted)
	RecvOps atomic.Uint64 // Total blocking Recv calls (Irecv alone is not counted)

	// Byte counters
	SendBytes atomic.Uint64 // Total bytes sent
	RecvBytes atomic.Uint64 // Total bytes received

	// Error counters
	SendErrors atomic.Uint64 // Send-path errors (e.g. ErrIntern on a full slot table)
	RecvErrors atomic.Uint64 // Recv-path errors
	Truncated  atomic.Uint64 // Receives completed with ErrTruncate

	// Collective call counters, one per collective operation
	BarrierOps   atomic.Uint64
	BcastOps     atomic.Uint64
	ReduceOps    atomic.Uint64
	AllreduceOps atomic.Uint64
	GatherOps    atomic.Uint64
	AllgatherOps atomic.Uint64

	// Unexpected-message queue depth, sampled after each progress pass
	UnexpectedDepthTotal atomic.Uint64
	UnexpectedDepthCount atomic.Uint64
	MaxUnexpectedDepth   atomic.Uint32

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative operation latency in nanoseconds
	OpCount        atomic.Uint64 // Total operations (for average latency calculation)

	// Latency histogram buckets (cumulative counts)
	// Each bucket[i] contains the count of operations with latency <= LatencyBuckets[i]
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// RuntimeContext lifecycle
	StartTime atomic.Int64 // Init timestamp (UnixNano)
	StopTime  atomic.Int64 // Finalize timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSend records a completed send operation.
func (m *Metrics) RecordSend(bytes uint64, latencyNs uint64, success bool) {
	m.SendOps.Add(1)
	if success {
		m.SendBytes.Add(bytes)
	} else {
		m.SendErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRecv records a completed receive operation.
func (m *Metrics) RecordRecv(bytes uint64, latencyNs uint64, success bool, truncated bool) {
	m.RecvOps.Add(1)
	if success {
		m.RecvBytes.Add(bytes)
	} else {
		m.RecvErrors.Add(1)
	}
	if truncated {
		m.Truncated.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordCollective increments the call counter for the named
// collective and folds its latency into the shared histogram.
func (m *Metrics) RecordCollective(kind CollectiveKind, latencyNs uint64) {
	switch kind {
	case CollectiveBarrier:
		m.BarrierOps.Add(1)
	case CollectiveBcast:
		m.BcastOps.Add(1)
	case CollectiveReduce:
		m.ReduceOps.Add(1)
	case CollectiveAllreduce:
		m.AllreduceOps.Add(1)
	case CollectiveGather:
		m.GatherOps.Add(1)
	case CollectiveAllgather:
		m.AllgatherOps.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordUnexpectedDepth records the unexpected-message queue depth as
// sampled after a progress pass.
func (m *Metrics) RecordUnexpectedDepth(depth uint32) {
	m.UnexpectedDepthTotal.Add(uint64(depth))
	m.UnexpectedDepthCount.Add(1)

	for {
		current := m.MaxUnexpectedDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxUnexpectedDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// recordLatency records operation latency and updates histogram
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	// Update histogram buckets (cumulative)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the runtime as finalized.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	SendOps uint64
	RecvOps uint64

	SendBytes uint64
	RecvBytes uint64

	SendErrors uint64
	RecvErrors uint64
	Truncated  uint64

	BarrierOps   uint64
	BcastOps     uint64
	ReduceOps    uint64
	AllreduceOps uint64
	GatherOps    uint64
	AllgatherOps uint64

	AvgUnexpectedDepth float64
	MaxUnexpectedDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SendOps:      m.SendOps.Load(),
		RecvOps:      m.RecvOps.Load(),
		SendBytes:    m.SendBytes.Load(),
		RecvBytes:    m.RecvBytes.Load(),
		SendErrors:   m.SendErrors.Load(),
		RecvErrors:   m.RecvErrors.Load(),
		Truncated:    m.Truncated.Load(),
		BarrierOps:   m.BarrierOps.Load(),
		BcastOps:     m.BcastOps.Load(),
		ReduceOps:    m.ReduceOps.Load(),
		AllreduceOps: m.AllreduceOps.Load(),
		GatherOps:    m.GatherOps.Load(),
		AllgatherOps: m.AllgatherOps.Load(),

		MaxUnexpectedDepth: m.MaxUnexpectedDepth.Load(),
	}

	snap.TotalOps = snap.SendOps + snap.RecvOps
	snap.TotalBytes = snap.SendBytes + snap.RecvBytes

	depthTotal := m.UnexpectedDepthTotal.Load()
	depthCount := m.UnexpectedDepthCount.Load()
	if depthCount > 0 {
		snap.AvgUnexpectedDepth = float64(depthTotal) / float64(depthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalErrors := snap.SendErrors + snap.RecvErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.SendOps.Store(0)
	m.RecvOps.Store(0)
	m.SendBytes.Store(0)
	m.RecvBytes.Store(0)
	m.SendErrors.Store(0)
	m.RecvErrors.Store(0)
	m.Truncated.Store(0)
	m.BarrierOps.Store(0)
	m.BcastOps.Store(0)
	m.ReduceOps.Store(0)
	m.AllreduceOps.Store(0)
	m.GatherOps.Store(0)
	m.AllgatherOps.Store(0)
	m.UnexpectedDepthTotal.Store(0)
	m.UnexpectedDepthCount.Store(0)
	m.MaxUnexpectedDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// CollectiveKind names a collective operation for RecordCollective /
// Observer.ObserveCollective.
type CollectiveKind int

const (
	CollectiveBarrier CollectiveKind = iota
	CollectiveBcast
	CollectiveReduce
	CollectiveAllreduce
	CollectiveGather
	CollectiveAllgather
)

// Observer allows pluggable metrics collection, mirrored one-to-one
// onto RuntimeContext's send/recv/collective call sites.
type Observer interface {
	ObserveSend(bytes uint64, latencyNs uint64, success bool)
	ObserveRecv(bytes uint64, latencyNs uint64, success bool, truncated bool)
	ObserveCollective(kind CollectiveKind, latencyNs uint64)
	ObserveUnexpectedDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveSend(uint64, uint64, bool)         {}
func (NoOpObserver) ObserveRecv(uint64, uint64, bool, bool)   {}
func (NoOpObserver) ObserveCollective(CollectiveKind, uint64) {}
func (NoOpObserver) ObserveUnexpectedDepth(uint32)            {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSend(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordSend(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveRecv(bytes uint64, latencyNs uint64, success bool, truncated bool) {
	o.metrics.RecordRecv(bytes, latencyNs, success, truncated)
}

func (o *MetricsObserver) ObserveCollective(kind CollectiveKind, latencyNs uint64) {
	o.metrics.RecordCollective(kind, latencyNs)
}

func (o *MetricsObserver) ObserveUnexpectedDepth(depth uint32) {
	o.metrics.RecordUnexpectedDepth(depth)
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
