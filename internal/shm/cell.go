// Package shm implements the lock-free shared-memory transport: a grid
// of per-directed-pair cell channels that two ranks hand a message
// through without any kernel-mediated synchronization beyond the
// initial mapping.
package shm

import (
	"sync/atomic"
	"unsafe"

	"github.com/behrlich/shmmpi/internal/constants"
)

// cellHeaderSize is the portion of Cell before Buf: Len, Tag, flag,
// padded out to a full cache line so two adjacent cells never share a
// line (false sharing between a cell the sender is spinning on and one
// the receiver already drained would otherwise cost both sides real
// latency).
const cellHeaderSize = constants.CacheLineSize

// Cell is one slot of a two-cell channel: a fixed buffer plus the
// length/tag of whatever message segment currently occupies it, and a
// flag the sender and receiver use to hand the cell back and forth.
//
// flag == 0 means the cell is empty (owned by the sender to fill).
// flag == 1 means the cell holds a filled segment (owned by the
// receiver to drain). Neither side ever writes the other's half of
// this protocol, so the handoff needs no lock — only the acquire/
// release ordering atomic.Int32 already provides.
type Cell struct {
	Len  int32
	Tag  int32
	flag int32
	_    [cellHeaderSize - 4 - 4 - 4]byte
	Buf  [constants.DefaultCellBuf]byte
}

// compile-time assertion that Cell is exactly cellHeaderSize + len(Buf)
// bytes, so offset arithmetic in Plane stays correct.
var _ [0]struct{} = [unsafe.Sizeof(Cell{}) - cellHeaderSize - constants.DefaultCellBuf]struct{}{}

func (c *Cell) flagPtr() *int32 {
	return (*int32)(unsafe.Pointer(&c.flag))
}

// Flag reads the handoff flag with acquire semantics.
func (c *Cell) Flag() int32 {
	return atomic.LoadInt32(c.flagPtr())
}

// SetFlag writes the handoff flag with release semantics.
func (c *Cell) SetFlag(val int32) {
	atomic.StoreInt32(c.flagPtr(), val)
}

// PollNE reports whether the flag currently differs from target,
// without blocking. Cell never spins itself; the progress engine's
// mid-message wait loops on PollNE/PollEQ.
func (c *Cell) PollNE(target int32) bool {
	return c.Flag() != target
}

// PollEQ reports whether the flag currently equals target.
func (c *Cell) PollEQ(target int32) bool {
	return c.Flag() == target
}
