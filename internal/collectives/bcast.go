package collectives

import "github.com/behrlich/shmmpi/internal/wire"

const bcastTag = 1

// Bcast delivers buf from root to every other member of comm using a
// binomial halving tree: at each level a rank still inside the active
// subtree either relays to a rank n hops ahead or receives and becomes
// the new sub-root for the remaining levels.
func Bcast(ep Endpoint, buf []byte, root wire.Rank, comm wire.CommId) error {
	size := ep.CommSize(comm)
	if err := checkRoot(root, size); err != nil {
		return err
	}
	if size == 1 || len(buf) == 0 {
		return nil
	}

	restore := ep.KeyChange(comm)
	defer restore()
	rank := ep.CommRank(comm)

	if size == 2 {
		if rank == root {
			return ep.Send(buf, (root+1)%2, bcastTag, comm)
		}
		_, err := ep.Recv(buf, root, bcastTag, comm)
		return err
	}

	// diff is fixed to the original root for the whole call; it tells
	// a rank whether it's still within the subtree about to receive,
	// independent of which sub-root the relay has reassigned root to.
	diff := (size + rank - root) % size

	n := wire.Rank(4)
	for n <= size {
		n <<= 1
	}

	for {
		n >>= 1
		if n == 0 {
			return nil
		}
		switch {
		case rank == root:
			if diff+n < size {
				if err := ep.Send(buf, (rank+n)%size, bcastTag, comm); err != nil {
					return err
				}
			}
		case rank == (root+n)%size:
			if _, err := ep.Recv(buf, root, bcastTag, comm); err != nil {
				return err
			}
			root = rank
		case (size+rank-root)%size > n:
			root = (root + n) % size
		}
	}
}
