package collectives

import "github.com/behrlich/shmmpi/internal/wire"

const allreduceTag = 4

// AllreduceStrategy picks which all-reduce algorithm Allreduce runs.
type AllreduceStrategy int

const (
	// AllreduceReduceBcast composes Reduce(root=0) and Bcast(root=0).
	// Works for any communicator size.
	AllreduceReduceBcast AllreduceStrategy = iota

	// AllreducePairwise runs the recursive-doubling XOR-partner
	// exchange, which only applies when size is a power of two. A
	// non-power-of-two size falls back to AllreduceReduceBcast.
	AllreducePairwise
)

// Allreduce folds every member's sbuf into an identical rbuf on every
// member, via whichever strategy the caller selects.
func Allreduce(ep Endpoint, sbuf, rbuf []byte, dtype wire.Datatype, op wire.Op, comm wire.CommId, strategy AllreduceStrategy) error {
	if strategy == AllreducePairwise {
		handled, err := allreducePairwise(ep, sbuf, rbuf, dtype, op, comm)
		if handled {
			return err
		}
	}
	return allreduceReduceBcast(ep, sbuf, rbuf, dtype, op, comm)
}

func allreduceReduceBcast(ep Endpoint, sbuf, rbuf []byte, dtype wire.Datatype, op wire.Op, comm wire.CommId) error {
	if err := Reduce(ep, sbuf, rbuf, dtype, op, 0, comm); err != nil {
		return err
	}
	return Bcast(ep, rbuf, 0, comm)
}

// allreducePairwise reports handled=false (deferring to the
// reduce+bcast path) when size isn't a power of two; otherwise it
// always reports handled=true, carrying its own error if any.
func allreducePairwise(ep Endpoint, sbuf, rbuf []byte, dtype wire.Datatype, op wire.Op, comm wire.CommId) (handled bool, err error) {
	if err := checkType(dtype); err != nil {
		return true, err
	}
	if err := checkOp(op); err != nil {
		return true, err
	}

	size := ep.CommSize(comm)
	count := int32(len(sbuf)) / dtype.Size()
	if count == 0 {
		return true, nil
	}
	if size == 1 {
		copy(rbuf, sbuf)
		return true, nil
	}

	n := wire.Rank(1)
	for n <= size {
		n <<= 1
	}
	n >>= 1
	if n != size {
		return false, nil
	}

	restore := ep.KeyChange(comm)
	defer restore()
	rank := ep.CommRank(comm)

	if _, serr := ep.Sendrecv(sbuf, rank^1, allreduceTag, rbuf, rank^1, allreduceTag, comm); serr != nil {
		return true, serr
	}
	apply(op, dtype, sbuf, rbuf, count)

	tmp := make([]byte, len(sbuf))
	for stride := wire.Rank(2); stride < n; stride <<= 1 {
		peer := rank ^ stride
		if _, serr := ep.Sendrecv(rbuf, peer, allreduceTag, tmp, peer, allreduceTag, comm); serr != nil {
			return true, serr
		}
		apply(op, dtype, tmp, rbuf, count)
	}
	return true, nil
}
