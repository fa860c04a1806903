package collectives

import "github.com/behrlich/shmmpi/internal/wire"

const gatherTag = 2

// Gather collects every member's sbuf into root's rbuf, laid out in
// rank order: a ring relay for three or more ranks (each hop folding
// in one more rank's block before passing the growing buffer on), a
// direct send/recv for two, a local copy for one.
func Gather(ep Endpoint, sbuf, rbuf []byte, root wire.Rank, comm wire.CommId) error {
	size := ep.CommSize(comm)
	if err := checkRoot(root, size); err != nil {
		return err
	}
	if len(sbuf) == 0 {
		return nil
	}

	blk := len(sbuf)

	if size == 1 {
		copy(rbuf, sbuf)
		return nil
	}

	restore := ep.KeyChange(comm)
	defer restore()
	rank := ep.CommRank(comm)

	if size == 2 {
		if rank == root {
			offset := blk * int((root+1)%2)
			if _, err := ep.Recv(rbuf[offset:offset+blk], (root+1)%2, gatherTag, comm); err != nil {
				return err
			}
			copy(rbuf[blk*int(root):], sbuf[:blk])
			return nil
		}
		return ep.Send(sbuf[:blk], root, gatherTag, comm)
	}

	if rank == root {
		copy(rbuf[blk*int(rank):], sbuf[:blk])
		if err := ep.Send(rbuf, (rank+1)%size, gatherTag, comm); err != nil {
			return err
		}
		_, err := ep.Recv(rbuf, (size+rank-1)%size, gatherTag, comm)
		return err
	}

	relay := make([]byte, blk*int(size))
	if _, err := ep.Recv(relay, (size+rank-1)%size, gatherTag, comm); err != nil {
		return err
	}
	copy(relay[blk*int(rank):], sbuf[:blk])
	return ep.Send(relay, (rank+1)%size, gatherTag, comm)
}
