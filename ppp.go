package mpi

import (
	"time"

	"github.com/behrlich/shmmpi/internal/commgroup"
	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/progress"
	"github.com/behrlich/shmmpi/internal/request"
	"github.com/behrlich/shmmpi/internal/wire"
)

// Request is a handle to a pending or completed point-to-point
// operation posted by Isend/Irecv. It must be resolved with Test,
// Wait, or Waitall before Finalize.
type Request struct {
	rc   *RuntimeContext
	slot *request.Request
	comm wire.CommId
	done bool
	stat Status
}

// validateP2P runs the buffer/count/datatype/rank/tag checks the
// reference runtime performs before translating rank and tag and
// touching the transport, in the same order context.rs does them.
func (rc *RuntimeContext) validateP2P(op string, buf []byte, count int32, dtype Datatype, peer Rank, tag int32, comm wire.CommId) error {
	if !rc.initialized {
		return rc.fail(op, wire.CommWorld, ErrOther)
	}
	c := rc.comm(comm)
	if c == nil {
		return rc.fail(op, comm, ErrComm)
	}
	if buf == nil {
		return rc.fail(op, comm, ErrBuffer)
	}
	if count < 0 {
		return rc.fail(op, comm, ErrCount)
	}
	if dtype.Size() == 0 {
		return rc.fail(op, comm, ErrType)
	}
	if peer < 0 || peer >= wire.Rank(c.Size()) {
		return rc.fail(op, comm, ErrRank)
	}
	if tag < 0 || tag > constants.MaxUserTag {
		return rc.fail(op, comm, ErrTag)
	}
	return nil
}

// Isend posts a non-blocking send of count elements of dtype from buf
// to dest on comm, tagged tag. The caller must not mutate buf until
// the returned Request completes.
func (rc *RuntimeContext) Isend(buf []byte, count int32, dtype Datatype, dest Rank, tag int32, comm CommId) (*Request, error) {
	bytes := count * dtype.Size()
	if err := rc.validateP2P("Isend", buf, count, dtype, dest, tag, comm); err != nil {
		return nil, err
	}
	c := rc.comm(comm)
	grank := commgroup.RankMap(c, dest)
	if grank == rc.rank {
		return nil, rc.fail("Isend", comm, ErrIntern)
	}
	wtag := commgroup.TagMap(c, tag)
	return rc.postSend(buf[:bytes], grank, wtag, comm)
}

// postSend pushes a send request whose peer rank and tag are already
// translated, skipping the public-API validation Isend performs. Used
// directly by the collective-Endpoint adapter, whose callers have
// already validated their arguments at the public collectives.go
// layer.
func (rc *RuntimeContext) postSend(buf []byte, grank wire.Rank, wtag int32, comm wire.CommId) (*Request, error) {
	if err := rc.progress(); err != nil {
		return nil, rc.fail("Isend", comm, ErrOther)
	}

	slot, ok := rc.queues.Send.Push()
	if !ok {
		return nil, rc.fail("Isend", comm, ErrIntern)
	}
	slot.Buf = buf
	slot.Cnt = int32(len(buf))
	slot.Rank = grank
	slot.Tag = wtag
	slot.Comm = comm
	slot.Send = true
	slot.Flag = 0

	return &Request{rc: rc, slot: slot, comm: comm}, nil
}

// Irecv posts a non-blocking receive of up to count elements of dtype into buf from src
// on comm, matching tag. If a matching message already arrived and is
// parked in the unexpected queue, the receive completes immediately
// and the returned Request's Test/Wait return true on the first call.
func (rc *RuntimeContext) Irecv(buf []byte, count int32, dtype Datatype, src Rank, tag int32, comm CommId) (*Request, error) {
	if err := rc.validateP2P("Irecv", buf, count, dtype, src, tag, comm); err != nil {
		return nil, err
	}
	c := rc.comm(comm)
	grank := commgroup.RankMap(c, src)
	if grank == rc.rank {
		return nil, rc.fail("Irecv", comm, ErrIntern)
	}
	wtag := commgroup.TagMap(c, tag)
	bytes := count * dtype.Size()
	return rc.postRecv(buf[:bytes], grank, wtag, comm)
}

// postRecv posts a receive request whose peer rank and tag are
// already translated, first checking the unexpected queue for an
// already-arrived match the way Irecv does. Used directly by the
// collective-Endpoint adapter.
func (rc *RuntimeContext) postRecv(buf []byte, grank wire.Rank, wtag int32, comm wire.CommId) (*Request, error) {
	if err := rc.progress(); err != nil {
		return nil, rc.fail("Irecv", comm, ErrOther)
	}

	if unexp := progress.MatchUnexpected(rc.queues, grank, wtag); unexp != nil {
		stat := progress.CompleteFromUnexpected(rc.queues, unexp, buf)
		return &Request{rc: rc, comm: comm, done: true, stat: rc.localStatus(comm, stat)}, nil
	}

	slot, ok := rc.queues.Recv.Push()
	if !ok {
		return nil, rc.fail("Irecv", comm, ErrIntern)
	}
	slot.Buf = buf
	slot.Cnt = int32(len(buf))
	slot.Rank = grank
	slot.Tag = wtag
	slot.Comm = comm
	slot.Send = false
	slot.Flag = 0

	return &Request{rc: rc, slot: slot, comm: comm}, nil
}

// Test checks whether r has completed without blocking, advancing the
// progress engine once first. It returns the completion flag and, on
// completion, the final Status; the request's slot is released as
// soon as it reports done.
func (r *Request) Test() (bool, Status, error) {
	if r.done {
		return true, r.stat, nil
	}
	if r.slot == nil {
		return true, r.stat, nil
	}
	if err := r.rc.progress(); err != nil {
		return false, Status{}, r.rc.fail("Test", r.comm, ErrOther)
	}
	if !r.slot.Done() {
		return false, Status{}, nil
	}
	r.stat = r.rc.localStatus(r.comm, r.slot.Stat)
	r.done = true
	if r.slot.Send {
		r.rc.queues.Send.Erase(r.slot)
	} else {
		r.rc.queues.Recv.Erase(r.slot)
	}
	r.slot = nil
	return true, r.stat, nil
}

// localStatus converts a transport-level status (global source rank,
// namespaced wire tag) into the Status callers see: the source's rank
// in comm and the user tag.
func (rc *RuntimeContext) localStatus(comm wire.CommId, s wire.Status) Status {
	stat := statusFromWire(s)
	if c := rc.comm(comm); c != nil {
		stat.Source = commgroup.RankUnmap(c, s.Source)
		stat.Tag = commgroup.TagUnmap(s.Tag)
	}
	return stat
}

// Wait blocks until r completes, running one progress pass per check
// and sleeping constants.ProgressYield between checks.
func (r *Request) Wait() (Status, error) {
	for {
		done, stat, err := r.Test()
		if err != nil {
			return Status{}, err
		}
		if done {
			return stat, nil
		}
		time.Sleep(constants.ProgressYield)
	}
}

// Waitall blocks until every request in reqs has completed, matching
// the reference runtime's MPI_ERR_IN_STATUS semantics: if any single
// Test call errors, that request's status carries the error class and
// Waitall returns ErrInStatus immediately rather than abandoning the
// others already resolved.
func Waitall(reqs []*Request) ([]Status, error) {
	stats := make([]Status, len(reqs))
	pending := make([]bool, len(reqs))
	for i := range reqs {
		pending[i] = true
	}

	remaining := len(reqs)
	for remaining > 0 {
		for i, r := range reqs {
			if !pending[i] {
				continue
			}
			done, stat, err := r.Test()
			if err != nil {
				stats[i] = stat
				stats[i].Error = Error_class(err)
				return stats, wrapOpError("Waitall", r.comm, r.rc.rank, ErrInStatus, err)
			}
			if done {
				stats[i] = stat
				pending[i] = false
				remaining--
			}
		}
		if remaining > 0 {
			time.Sleep(constants.ProgressYield)
		}
	}
	return stats, nil
}

// Send performs a blocking send: Isend followed by Wait.
func (rc *RuntimeContext) Send(buf []byte, count int32, dtype Datatype, dest Rank, tag int32, comm CommId) error {
	start := time.Now()
	bytes := uint64(count * dtype.Size())
	req, err := rc.Isend(buf, count, dtype, dest, tag, comm)
	if err != nil {
		rc.observer.ObserveSend(bytes, 0, false)
		return err
	}
	_, err = req.Wait()
	rc.observer.ObserveSend(bytes, uint64(time.Since(start).Nanoseconds()), err == nil)
	return err
}

// Recv performs a blocking receive: Irecv followed by Wait.
func (rc *RuntimeContext) Recv(buf []byte, count int32, dtype Datatype, src Rank, tag int32, comm CommId) (Status, error) {
	start := time.Now()
	bytes := uint64(count * dtype.Size())
	req, err := rc.Irecv(buf, count, dtype, src, tag, comm)
	if err != nil {
		rc.observer.ObserveRecv(bytes, 0, false, false)
		return Status{}, err
	}
	stat, err := req.Wait()
	rc.observer.ObserveRecv(bytes, uint64(time.Since(start).Nanoseconds()), err == nil, stat.Error == ErrTruncate)
	return stat, err
}

// Sendrecv performs a simultaneous send and receive on the same
// communicator, avoiding the deadlock a naive Send-then-Recv pair
// risks when two ranks exchange messages with each other.
func (rc *RuntimeContext) Sendrecv(
	sbuf []byte, scount int32, sdtype Datatype, dest Rank, stag int32,
	rbuf []byte, rcount int32, rdtype Datatype, src Rank, rtag int32,
	comm CommId,
) (Status, error) {
	sreq, err := rc.Isend(sbuf, scount, sdtype, dest, stag, comm)
	if err != nil {
		return Status{}, err
	}
	rreq, err := rc.Irecv(rbuf, rcount, rdtype, src, rtag, comm)
	if err != nil {
		return Status{}, err
	}
	if _, err := sreq.Wait(); err != nil {
		return Status{}, err
	}
	return rreq.Wait()
}
