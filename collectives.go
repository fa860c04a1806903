package mpi

import (
	"time"

	"github.com/behrlich/shmmpi/internal/collectives"
)

// Barrier blocks every member of comm until all members have entered
// the call.
func (rc *RuntimeContext) Barrier(comm CommId) error {
	if rc.comm(comm) == nil {
		return rc.fail("Barrier", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Barrier(rcEndpoint{rc: rc}, comm)
	rc.observer.ObserveCollective(CollectiveBarrier, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Barrier", comm, err)
}

// Bcast delivers buf from root to every other member of comm.
func (rc *RuntimeContext) Bcast(buf []byte, root Rank, comm CommId) error {
	if rc.comm(comm) == nil {
		return rc.fail("Bcast", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Bcast(rcEndpoint{rc: rc}, buf, root, comm)
	rc.observer.ObserveCollective(CollectiveBcast, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Bcast", comm, err)
}

// Gather collects every member's sbuf into root's rbuf, laid out in
// rank order. rbuf is only read on root; on other ranks it may be nil.
func (rc *RuntimeContext) Gather(sbuf, rbuf []byte, root Rank, comm CommId) error {
	if rc.comm(comm) == nil {
		return rc.fail("Gather", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Gather(rcEndpoint{rc: rc}, sbuf, rbuf, root, comm)
	rc.observer.ObserveCollective(CollectiveGather, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Gather", comm, err)
}

// Allgather collects every member's sbuf into an identical rbuf on
// every member, laid out in rank order.
func (rc *RuntimeContext) Allgather(sbuf, rbuf []byte, comm CommId) error {
	if rc.comm(comm) == nil {
		return rc.fail("Allgather", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Allgather(rcEndpoint{rc: rc}, sbuf, rbuf, comm)
	rc.observer.ObserveCollective(CollectiveAllgather, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Allgather", comm, err)
}

// Reduce folds every member's sbuf into root's rbuf with op. rbuf is
// only written on root.
func (rc *RuntimeContext) Reduce(sbuf, rbuf []byte, dtype Datatype, op Op, root Rank, comm CommId) error {
	if rc.comm(comm) == nil {
		return rc.fail("Reduce", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Reduce(rcEndpoint{rc: rc}, sbuf, rbuf, dtype, op, root, comm)
	rc.observer.ObserveCollective(CollectiveReduce, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Reduce", comm, err)
}

// AllreduceStrategy selects which Allreduce algorithm to run; see
// internal/collectives for the tradeoffs between the two.
type AllreduceStrategy = collectives.AllreduceStrategy

const (
	AllreduceReduceBcast = collectives.AllreduceReduceBcast
	AllreducePairwise    = collectives.AllreducePairwise
)

// Allreduce folds every member's sbuf into an identical rbuf on every
// member, via strategy.
func (rc *RuntimeContext) Allreduce(sbuf, rbuf []byte, dtype Datatype, op Op, comm CommId, strategy AllreduceStrategy) error {
	if rc.comm(comm) == nil {
		return rc.fail("Allreduce", comm, ErrComm)
	}
	start := time.Now()
	err := collectives.Allreduce(rcEndpoint{rc: rc}, sbuf, rbuf, dtype, op, comm, strategy)
	rc.observer.ObserveCollective(CollectiveAllreduce, uint64(time.Since(start).Nanoseconds()))
	return rc.collectiveErr("Allreduce", comm, err)
}

// collectiveErr classifies an internal/collectives.ClassError (an
// argument validation failure that never touched the transport) into
// the same public ErrorClass/opError surface point-to-point errors
// use, and routes it through comm's bound error handler like any
// other failure.
func (rc *RuntimeContext) collectiveErr(op string, comm CommId, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*collectives.ClassError); ok {
		return rc.fail(op, comm, ErrorClass(ce.Class))
	}
	return err
}
