// Package mpi implements a single-node, shared-memory message-passing
// transport in the style of MPI: one OS process per rank, point-to-point
// Send/Recv/Isend/Irecv/Sendrecv, and the Barrier/Bcast/Reduce/Allreduce/
// Gather/Allgather collectives, all riding a lock-free shared-memory
// plane rather than sockets or pipes.
package mpi

import "github.com/behrlich/shmmpi/internal/wire"

// Rank identifies a process, either globally or within a communicator.
type Rank = wire.Rank

// CommId identifies a communicator.
type CommId = wire.CommId

const (
	CommNull  = wire.CommNull
	CommSelf  = wire.CommSelf
	CommWorld = wire.CommWorld
)

// Datatype codes: the numeric value is the element size in bytes.
type Datatype = wire.Datatype

const (
	Byte   = wire.Byte
	Int    = wire.Int
	Double = wire.Double
)

// Op identifies a reduction operator.
type Op = wire.Op

const (
	OpMax = wire.OpMax
	OpMin = wire.OpMin
	OpSum = wire.OpSum
)

// Status describes a completed request: the peer rank, the
// communicator-local tag, the byte count actually transferred, and an
// ErrorClass (ErrSuccess on the ordinary path, ErrTruncate if the
// receive buffer was smaller than the arriving message).
type Status struct {
	Source Rank
	Tag    int32
	Count  int32
	Error  ErrorClass
}

func statusFromWire(s wire.Status) Status {
	return Status{Source: s.Source, Tag: s.Tag, Count: s.Count, Error: ErrorClass(s.Error)}
}

// Type_size returns the element size in bytes for dtype, per the
// public ABI's Type_size.
func Type_size(dtype Datatype) int32 {
	return dtype.Size()
}

// Get_count returns the element count a Status's byte count represents
// under dtype.
func Get_count(stat Status, dtype Datatype) int32 {
	sz := dtype.Size()
	if sz == 0 {
		return 0
	}
	return stat.Count / sz
}
