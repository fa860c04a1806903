package collectives

import "github.com/behrlich/shmmpi/internal/wire"

// All-gather is a gather to rank 0 followed by a broadcast of the
// assembled buffer back out — no dedicated algorithm of its own.
func Allgather(ep Endpoint, sbuf, rbuf []byte, comm wire.CommId) error {
	if err := Gather(ep, sbuf, rbuf, 0, comm); err != nil {
		return err
	}
	return Bcast(ep, rbuf, 0, comm)
}
