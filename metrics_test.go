package mpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	assert.Zero(t, snap.TotalOps)

	m.RecordSend(1024, 1000000, true)
	m.RecordRecv(2048, 2000000, true, false)
	m.RecordSend(512, 500000, false)

	snap = m.Snapshot()

	assert.EqualValues(t, 2, snap.SendOps)
	assert.EqualValues(t, 1, snap.RecvOps)
	assert.EqualValues(t, 1024, snap.SendBytes)
	assert.EqualValues(t, 2048, snap.RecvBytes)
	assert.EqualValues(t, 1, snap.SendErrors)
	assert.Zero(t, snap.RecvErrors)

	expectedErrorRate := float64(1) / float64(3) * 100.0
	assert.InDelta(t, expectedErrorRate, snap.ErrorRate, 0.1)
}

func TestMetricsTruncation(t *testing.T) {
	m := NewMetrics()

	m.RecordRecv(4, 100, true, true)
	m.RecordRecv(8, 100, true, false)

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.Truncated)
	assert.EqualValues(t, 2, snap.RecvOps)
}

func TestMetricsCollectiveCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordCollective(CollectiveBarrier, 1000)
	m.RecordCollective(CollectiveBcast, 2000)
	m.RecordCollective(CollectiveBcast, 2000)
	m.RecordCollective(CollectiveReduce, 3000)
	m.RecordCollective(CollectiveAllreduce, 4000)
	m.RecordCollective(CollectiveGather, 5000)
	m.RecordCollective(CollectiveAllgather, 6000)

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.BarrierOps)
	assert.EqualValues(t, 2, snap.BcastOps)
	assert.EqualValues(t, 1, snap.ReduceOps)
	assert.EqualValues(t, 1, snap.AllreduceOps)
	assert.EqualValues(t, 1, snap.GatherOps)
	assert.EqualValues(t, 1, snap.AllgatherOps)
}

func TestMetricsUnexpectedDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordUnexpectedDepth(1)
	m.RecordUnexpectedDepth(3)
	m.RecordUnexpectedDepth(2)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.MaxUnexpectedDepth)

	expectedAvg := float64(1+3+2) / 3.0
	assert.InDelta(t, expectedAvg, snap.AvgUnexpectedDepth, 0.1)
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordSend(1024, 1000000, true)
	m.RecordRecv(1024, 2000000, true, false)

	snap := m.Snapshot()
	assert.EqualValues(t, 1500000, snap.AvgLatencyNs)
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeNs, uint64(10*1000000))

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	assert.LessOrEqual(t, snap2.UptimeNs, snap.UptimeNs+2*1000000)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordSend(1024, 1000000, true)
	m.RecordRecv(2048, 2000000, true, false)
	m.RecordUnexpectedDepth(10)

	snap := m.Snapshot()
	assert.NotZero(t, snap.TotalOps, "expected some operations before reset")

	m.Reset()

	snap = m.Snapshot()
	assert.Zero(t, snap.TotalOps)
	assert.Zero(t, snap.TotalBytes)
	assert.Zero(t, snap.MaxUnexpectedDepth)
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveSend(1024, 1000000, true)
	observer.ObserveRecv(1024, 1000000, true, false)
	observer.ObserveCollective(CollectiveBarrier, 1000000)
	observer.ObserveUnexpectedDepth(1)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveSend(1024, 1000000, true)
	metricsObserver.ObserveRecv(2048, 2000000, true, false)

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.SendOps)
	assert.EqualValues(t, 1, snap.RecvOps)
	assert.EqualValues(t, 1024, snap.SendBytes)
	assert.EqualValues(t, 2048, snap.RecvBytes)
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordSend(1024, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordRecv(1024, 5_000_000, true, false) // 5ms
	}
	m.RecordRecv(1024, 50_000_000, true, false) // 50ms (the slowest op; P99 falls among the 5ms ops)

	snap := m.Snapshot()
	assert.EqualValues(t, 100, snap.TotalOps)
	assert.GreaterOrEqual(t, snap.LatencyP50Ns, uint64(100_000))
	assert.LessOrEqual(t, snap.LatencyP50Ns, uint64(1_000_000))
	assert.GreaterOrEqual(t, snap.LatencyP99Ns, uint64(5_000_000))
	assert.LessOrEqual(t, snap.LatencyP99Ns, uint64(100_000_000))

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	assert.NotZero(t, totalInBuckets, "expected histogram buckets to be populated")
}
