package collectives

import "github.com/behrlich/shmmpi/internal/wire"

const reduceTag = 3

// Reduce folds every member's sbuf into root's rbuf with op, using
// recursive halving: at each doubling stride, a rank either forwards
// whatever it has accumulated so far to a rank stride hops back (and
// is done) or receives from a rank stride hops ahead and folds it in.
// A rank's own position relative to root, diff, is a fixed residue
// mod size; the stride at which diff stops dividing evenly is exactly
// the stride at which that rank forwards and drops out, so the loop
// below terminates itself via break rather than needing the original
// unrolled first two strides as special cases.
func Reduce(ep Endpoint, sbuf, rbuf []byte, dtype wire.Datatype, op wire.Op, root wire.Rank, comm wire.CommId) error {
	if err := checkOp(op); err != nil {
		return err
	}
	if err := checkType(dtype); err != nil {
		return err
	}

	size := ep.CommSize(comm)
	if err := checkRoot(root, size); err != nil {
		return err
	}

	count := int32(len(sbuf)) / dtype.Size()
	if count == 0 {
		return nil
	}
	if size == 1 {
		copy(rbuf, sbuf)
		return nil
	}

	restore := ep.KeyChange(comm)
	defer restore()
	rank := ep.CommRank(comm)

	if size == 2 {
		if rank == root {
			if _, err := ep.Recv(rbuf, (root+1)%2, reduceTag, comm); err != nil {
				return err
			}
			apply(op, dtype, sbuf, rbuf, count)
			return nil
		}
		return ep.Send(sbuf, root, reduceTag, comm)
	}

	diff := (size + rank - root) % size

	var acc []byte
	if rank == root {
		acc = rbuf
	} else {
		acc = make([]byte, len(sbuf))
	}
	haveAcc := false
	tmp := make([]byte, len(sbuf))

	for stride := wire.Rank(1); stride < size; stride <<= 1 {
		level := stride << 1
		if diff%level != 0 {
			if diff%stride == 0 {
				src := acc
				if !haveAcc {
					src = sbuf
				}
				if err := ep.Send(src, (size+rank-stride)%size, reduceTag, comm); err != nil {
					return err
				}
			}
			break
		}
		if diff >= size-stride {
			continue
		}
		if _, err := ep.Recv(tmp, (rank+stride)%size, reduceTag, comm); err != nil {
			return err
		}
		if !haveAcc {
			copy(acc, sbuf)
			haveAcc = true
		}
		apply(op, dtype, tmp, acc, count)
	}

	return nil
}
