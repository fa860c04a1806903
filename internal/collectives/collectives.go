// Package collectives implements the six collective algorithms
// (Barrier, Broadcast, Gather, All-gather, Reduce, All-reduce) in
// terms of a small Endpoint interface rather than the root package
// directly — so the root package can satisfy Endpoint with its
// RuntimeContext without this package ever importing it back.
package collectives

import "github.com/behrlich/shmmpi/internal/wire"

// Endpoint is everything a collective needs from the runtime: the
// point-to-point primitives, communicator shape, and the key-namespace
// bracketing every collective call uses to keep its internal traffic
// off both user tags and other concurrently-nested collectives.
type Endpoint interface {
	Send(buf []byte, dest wire.Rank, tag int32, comm wire.CommId) error
	Recv(buf []byte, src wire.Rank, tag int32, comm wire.CommId) (wire.Status, error)
	Sendrecv(sbuf []byte, dest wire.Rank, stag int32, rbuf []byte, src wire.Rank, rtag int32, comm wire.CommId) (wire.Status, error)
	CommSize(comm wire.CommId) wire.Rank
	CommRank(comm wire.CommId) wire.Rank
	KeyChange(comm wire.CommId) func()
}

// ClassError reports a collective argument failure in terms of the
// same error-class taxonomy the root package's public API uses, so
// the root package can surface it without re-classifying.
type ClassError struct {
	Class wire.ErrorClass
}

func (e *ClassError) Error() string {
	return "mpi: invalid argument (class " + itoa(int32(e.Class)) + ")"
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func checkOp(op wire.Op) error {
	switch op {
	case wire.OpMax, wire.OpMin, wire.OpSum:
		return nil
	}
	return &ClassError{Class: wire.ErrOp}
}

func checkType(dtype wire.Datatype) error {
	switch dtype {
	case wire.Byte, wire.Int, wire.Double:
		return nil
	}
	return &ClassError{Class: wire.ErrType}
}

func checkRoot(root, size wire.Rank) error {
	if root < 0 || root >= size {
		return &ClassError{Class: wire.ErrRoot}
	}
	return nil
}
