package collectives

import "github.com/behrlich/shmmpi/internal/wire"

const barrierTag = 3

// Barrier synchronizes every member of comm: a ring handshake for
// three or more ranks, a direct pairwise handshake for two, a no-op
// for one.
func Barrier(ep Endpoint, comm wire.CommId) error {
	size := ep.CommSize(comm)
	if size == 1 {
		return nil
	}

	restore := ep.KeyChange(comm)
	defer restore()
	rank := ep.CommRank(comm)

	if size == 2 {
		if rank == 0 {
			if err := ep.Send(nil, 1, barrierTag, comm); err != nil {
				return err
			}
			_, err := ep.Recv(nil, 1, barrierTag, comm)
			return err
		}
		if _, err := ep.Recv(nil, 0, barrierTag, comm); err != nil {
			return err
		}
		return ep.Send(nil, 0, barrierTag, comm)
	}

	if rank == 0 {
		if err := ep.Send(nil, (rank+1)%size, barrierTag, comm); err != nil {
			return err
		}
		_, err := ep.Recv(nil, (size+rank-1)%size, barrierTag, comm)
		return err
	}
	if _, err := ep.Recv(nil, (size+rank-1)%size, barrierTag, comm); err != nil {
		return err
	}
	return ep.Send(nil, (rank+1)%size, barrierTag, comm)
}
