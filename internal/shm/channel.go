package shm

import (
	"unsafe"

	"github.com/behrlich/shmmpi/internal/constants"
)

// Channel is one directed pair of cells living at Plane[from][to]. Only
// the sending rank ever advances nsend, and only the receiving rank
// ever advances nrecv — each touches only the half of the struct it
// owns, so the index fields themselves need no synchronization even
// though the struct is mapped into both processes.
type Channel struct {
	nsend int32
	nrecv int32
	_     [constants.CacheLineSize - 4 - 4]byte
	Cells [constants.CellsPerChannel]Cell
}

var _ [0]struct{} = [unsafe.Sizeof(Channel{}) - constants.CacheLineSize - constants.CellsPerChannel*unsafe.Sizeof(Cell{})]struct{}{}

// SendCell returns the cell the sender should currently write into.
func (ch *Channel) SendCell() *Cell {
	return &ch.Cells[ch.nsend]
}

// RecvCell returns the cell the receiver should currently read from.
func (ch *Channel) RecvCell() *Cell {
	return &ch.Cells[ch.nrecv]
}

// AdvanceSend moves the sender to the next cell in the rotation. Only
// the sending rank calls this.
func (ch *Channel) AdvanceSend() {
	ch.nsend = (ch.nsend + 1) % int32(len(ch.Cells))
}

// AdvanceRecv moves the receiver to the next cell in the rotation. Only
// the receiving rank calls this.
func (ch *Channel) AdvanceRecv() {
	ch.nrecv = (ch.nrecv + 1) % int32(len(ch.Cells))
}
