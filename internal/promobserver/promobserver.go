// Package promobserver adapts the root package's Observer interface to
// Prometheus, so a RuntimeContext's send/recv/collective traffic can be
// scraped alongside the rest of a process's metrics instead of only
// being readable through Metrics.Snapshot.
package promobserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	mpi "github.com/behrlich/shmmpi"
)

// collectiveLabel names the six collectives for the collective_calls
// metric's "op" label. Index order must match mpi.CollectiveKind's
// iota order (Barrier, Bcast, Reduce, Allreduce, Gather, Allgather).
var collectiveLabel = [...]string{
	"barrier", "bcast", "reduce", "allreduce", "gather", "allgather",
}

// Observer implements the root package's Observer interface by pushing
// every observation into Prometheus collectors registered on reg, using
// the prefix/constLabels shape the pack's own Prometheus exporter code
// uses for per-process identity labels (hostname, rank, and so on).
type Observer struct {
	sendOps      prometheus.Counter
	sendBytes    prometheus.Counter
	sendErrors   prometheus.Counter
	recvOps      prometheus.Counter
	recvBytes    prometheus.Counter
	recvErrors   prometheus.Counter
	truncated    prometheus.Counter
	collectiveOp *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	unexpectedQ  prometheus.Gauge
}

// New registers a full set of Observer collectors on reg under prefix
// (e.g. "shmmpi"), with constLabels attached to every metric. Passing a
// fresh *prometheus.Registry rather than prometheus.DefaultRegisterer
// keeps multiple RuntimeContexts in one process (as Loopback-style
// tests construct) from colliding on metric names.
func New(reg prometheus.Registerer, prefix string, constLabels prometheus.Labels) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		sendOps: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_send_ops_total",
			Help:        "Blocking Send calls.",
			ConstLabels: constLabels,
		}),
		sendBytes: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_send_bytes_total",
			Help:        "Bytes successfully sent.",
			ConstLabels: constLabels,
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_send_errors_total",
			Help:        "Send-path failures.",
			ConstLabels: constLabels,
		}),
		recvOps: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_recv_ops_total",
			Help:        "Blocking Recv calls.",
			ConstLabels: constLabels,
		}),
		recvBytes: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_recv_bytes_total",
			Help:        "Bytes successfully received.",
			ConstLabels: constLabels,
		}),
		recvErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_recv_errors_total",
			Help:        "Recv-path failures.",
			ConstLabels: constLabels,
		}),
		truncated: factory.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_recv_truncated_total",
			Help:        "Receives completed with ErrTruncate.",
			ConstLabels: constLabels,
		}),
		collectiveOp: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_collective_calls_total",
			Help:        "Completed collective calls, by operation.",
			ConstLabels: constLabels,
		}, []string{"op"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        prefix + "_op_latency_seconds",
			Help:        "Latency of send/recv/collective operations.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 10, 8), // 1us..10s, matching mpi.LatencyBuckets
		}, []string{"kind"}),
		unexpectedQ: factory.NewGauge(prometheus.GaugeOpts{
			Name:        prefix + "_unexpected_queue_depth",
			Help:        "Unexpected-message queue depth, sampled after each progress pass.",
			ConstLabels: constLabels,
		}),
	}
}

func (o *Observer) ObserveSend(bytes uint64, latencyNs uint64, success bool) {
	o.sendOps.Inc()
	if success {
		o.sendBytes.Add(float64(bytes))
	} else {
		o.sendErrors.Inc()
	}
	o.latency.WithLabelValues("send").Observe(float64(latencyNs) / 1e9)
}

func (o *Observer) ObserveRecv(bytes uint64, latencyNs uint64, success bool, truncated bool) {
	o.recvOps.Inc()
	if success {
		o.recvBytes.Add(float64(bytes))
	} else {
		o.recvErrors.Inc()
	}
	if truncated {
		o.truncated.Inc()
	}
	o.latency.WithLabelValues("recv").Observe(float64(latencyNs) / 1e9)
}

func (o *Observer) ObserveCollective(kind mpi.CollectiveKind, latencyNs uint64) {
	label := "unknown"
	if int(kind) >= 0 && int(kind) < len(collectiveLabel) {
		label = collectiveLabel[kind]
	}
	o.collectiveOp.WithLabelValues(label).Inc()
	o.latency.WithLabelValues(label).Observe(float64(latencyNs) / 1e9)
}

func (o *Observer) ObserveUnexpectedDepth(depth uint32) {
	o.unexpectedQ.Set(float64(depth))
}

var _ mpi.Observer = (*Observer)(nil)
