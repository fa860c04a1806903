// Package progress implements the cooperative, single-threaded progress
// engine: one pass over a rank's posted receives, then its posted
// sends, draining whatever cells the shared-memory plane currently has
// ready and parking mismatched arrivals in the unexpected queue. Every
// blocking MPI call drives this by invoking Run repeatedly; nothing in
// this package ever blocks on its own initiative except the bounded
// spin used mid-message, once a transfer has already started.
package progress

import (
	"errors"
	"runtime"

	"github.com/behrlich/shmmpi/internal/blockcopy"
	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/msgpool"
	"github.com/behrlich/shmmpi/internal/reqslot"
	"github.com/behrlich/shmmpi/internal/request"
	"github.com/behrlich/shmmpi/internal/shm"
	"github.com/behrlich/shmmpi/internal/wire"
)

// ErrUnexpectedQueueFull is returned when an arriving message doesn't
// match any posted receive and the unexpected queue has no free slot.
var ErrUnexpectedQueueFull = errors.New("progress: unexpected queue full")

// Queues holds one rank's three request tables: posted sends, posted
// receives, and messages that arrived before anyone posted a matching
// receive for them.
type Queues struct {
	Send  *reqslot.Table[request.Request]
	Recv  *reqslot.Table[request.Request]
	Unexp *reqslot.Table[request.Request]
}

// NewQueues allocates the three tables at the given per-queue capacity.
func NewQueues(capacity int) *Queues {
	return &Queues{
		Send:  reqslot.NewTable[request.Request](capacity),
		Recv:  reqslot.NewTable[request.Request](capacity),
		Unexp: reqslot.NewTable[request.Request](capacity),
	}
}

// Run makes one pass over q's posted receives, then its posted sends,
// advancing any whose next cell is ready. It never blocks waiting for a
// cell to become ready; it only spins once a multi-segment transfer has
// already begun, since splitting a single message across separate Run
// calls would require smuggling partial state through the queue itself.
func Run(plane *shm.Plane, me wire.Rank, q *Queues) error {
	var firstErr error
	q.Recv.Each(func(r *request.Request) bool {
		if r.Done() {
			return true
		}
		if err := recvStep(plane, me, q, r); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	q.Send.Each(func(r *request.Request) bool {
		if r.Done() {
			return true
		}
		if err := sendStep(plane, me, r); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// recvStep advances one posted receive if its channel's next cell is
// ready. A tag mismatch diverts the arriving message into a freshly
// allocated unexpected slot instead of r — r itself is left untouched,
// still waiting for its own match on a later call.
func recvStep(plane *shm.Plane, me wire.Rank, q *Queues, r *request.Request) error {
	ch := plane.At(r.Rank, me)
	cell := ch.RecvCell()
	if cell.Flag() == 0 {
		return nil
	}

	msgTag := cell.Tag
	msgLen := cell.Len

	target := r
	if msgTag != r.Tag {
		slot, ok := q.Unexp.Push()
		if !ok {
			return ErrUnexpectedQueueFull
		}
		slot.Rank = r.Rank
		slot.Tag = msgTag
		slot.Comm = r.Comm
		slot.Send = false
		slot.HeapOwned = true
		slot.Buf = msgpool.Get(int(msgLen))
		target = slot
	}

	capacity := int32(len(target.Buf))
	truncated := target == r && msgLen > capacity

	drainInto(ch, cell, msgLen, target.Buf, capacity)

	target.Cnt = msgLen
	target.Stat = wire.Status{Source: r.Rank, Tag: msgTag, Count: msgLen}
	if truncated {
		target.Stat.Error = int32(wire.ErrTruncate)
	}
	target.Flag = 1
	return nil
}

// drainInto copies the msgLen-byte message starting at the already-
// ready cell into dst, spinning across however many further cells the
// message spans. Bytes beyond capacity are still drained off the
// channel (so the channel stays consistent for the next message) but
// are not written to dst.
func drainInto(ch *shm.Channel, cell *shm.Cell, msgLen int32, dst []byte, capacity int32) {
	remaining := msgLen
	written := int32(0)
	for {
		segLen := remaining
		if segLen > int32(len(cell.Buf)) {
			segLen = int32(len(cell.Buf))
		}
		avail := capacity - written
		n := segLen
		if n > avail {
			n = avail
		}
		if n < 0 {
			n = 0
		}
		if n > 0 {
			blockcopy.Copy(dst[written:written+n], cell.Buf[:n])
		}
		written += n
		cell.SetFlag(0)
		ch.AdvanceRecv()
		remaining -= segLen
		if remaining == 0 {
			return
		}
		cell = ch.RecvCell()
		spinUntil(func() bool { return cell.PollNE(0) })
	}
}

// sendStep advances one posted send if its channel's next cell is free
// for the sender to fill.
func sendStep(plane *shm.Plane, me wire.Rank, r *request.Request) error {
	ch := plane.At(me, r.Rank)
	cell := ch.SendCell()
	if cell.Flag() != 0 {
		return nil
	}

	remaining := r.Cnt
	offset := int32(0)
	for {
		segLen := remaining
		if segLen > int32(len(cell.Buf)) {
			segLen = int32(len(cell.Buf))
		}
		if segLen > 0 {
			blockcopy.Copy(cell.Buf[:segLen], r.Buf[offset:offset+segLen])
		}
		cell.Len = segLen
		cell.Tag = r.Tag
		cell.SetFlag(1)
		ch.AdvanceSend()
		offset += segLen
		remaining -= segLen
		if remaining == 0 {
			break
		}
		cell = ch.SendCell()
		spinUntil(func() bool { return cell.PollEQ(0) })
	}

	r.Stat = wire.Status{Source: me, Tag: r.Tag, Count: r.Cnt}
	r.Flag = 1
	return nil
}

// spinUntil busy-waits for cond, yielding to the scheduler every
// ProgressSpinBudget iterations so a single stalled peer can't starve
// the rest of the runtime.
func spinUntil(cond func() bool) {
	count := 0
	for !cond() {
		count++
		if count >= constants.ProgressSpinBudget {
			runtime.Gosched()
			count = 0
		}
	}
}

// MatchUnexpected looks for an already-arrived message from rank with
// the given namespaced tag, without removing it from the queue.
func MatchUnexpected(q *Queues, rank wire.Rank, tag int32) *request.Request {
	return q.Unexp.Find(func(r *request.Request) bool {
		return r.Rank == rank && r.Tag == tag
	})
}

// CompleteFromUnexpected copies an already-arrived unexpected message
// into dst, releases its pooled buffer, and removes it from q.Unexp.
// Used by Irecv when MatchUnexpected finds a hit, so the new receive
// completes synchronously instead of waiting on another Run pass.
func CompleteFromUnexpected(q *Queues, slot *request.Request, dst []byte) wire.Status {
	capacity := int32(len(dst))
	n := slot.Cnt
	truncated := n > capacity
	if truncated {
		n = capacity
	}
	if n > 0 {
		blockcopy.Copy(dst[:n], slot.Buf[:n])
	}
	stat := wire.Status{Source: slot.Rank, Tag: slot.Tag, Count: slot.Cnt}
	if truncated {
		stat.Error = int32(wire.ErrTruncate)
	}
	if slot.HeapOwned {
		msgpool.Put(slot.Buf)
	}
	q.Unexp.Erase(slot)
	return stat
}
