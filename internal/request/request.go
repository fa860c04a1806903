// Package request defines the slot-allocated Request: the unit the
// progress engine advances, shared by internal/progress and the root
// package so the progress engine need not import the root package.
package request

import "github.com/behrlich/shmmpi/internal/wire"

// Request is one pending or completed send/recv operation. It lives
// inside a reqslot.Table[Request] slot, never boxed separately on the
// hot path.
type Request struct {
	// Buf is the user's buffer for an expected request, or a pooled
	// heap buffer for one parked in the unexpected queue.
	Buf []byte

	// Cnt is the total byte count expected (recv) or to send (send).
	// For a completed recv this is updated to the actual bytes matched.
	Cnt int32

	// Rank is the peer's global rank.
	Rank wire.Rank

	// Tag is the namespaced wire tag (communicator key prefix already applied).
	Tag int32

	// Comm is the owning communicator.
	Comm wire.CommId

	// Flag is 0 while in flight, 1 once complete.
	Flag int32

	// Stat holds the completion status, filled in on the final
	// segment, with the sender's global rank and the namespaced wire
	// tag; the root package converts both before reporting them.
	Stat wire.Status

	// Send is true for a posted send request, false for recv. Unexpected
	// slots are always recv-shaped (Send == false).
	Send bool

	// HeapOwned marks a Buf obtained from internal/msgpool (an
	// unexpected-message buffer) that progress.CompleteFromUnexpected
	// releases once its bytes are copied out, rather than a
	// caller-owned buffer the progress engine only borrows.
	HeapOwned bool
}

// Done reports whether the request has completed.
func (r *Request) Done() bool { return r.Flag != 0 }
