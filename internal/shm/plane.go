package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Plane is the N-by-N grid of Channels backing an entire communicator
// world: Plane.At(from, to) is the one-directional channel carrying
// messages sent by rank `from` to rank `to`. It is backed either by an
// anonymous MAP_SHARED mapping (fork-based bootstrap, where children
// inherit the mapping) or a named System V shared memory segment
// (launcher-based bootstrap, where unrelated processes attach to the
// same key).
type Plane struct {
	data     []byte
	size     int32
	shmID    int // SysV shm identifier, -1 if anonymous
	attached bool
}

func channelSize() int {
	return int(unsafe.Sizeof(Channel{}))
}

// NewAnonymous allocates an anonymous MAP_SHARED plane sized for an
// n-rank world. Intended for the fork-based bootstrap, where every
// rank is a child of the process that created the mapping and the
// mapping survives the fork.
func NewAnonymous(n int32) (*Plane, error) {
	length := int(n) * int(n) * channelSize()
	data, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap anonymous plane: %w", err)
	}
	return &Plane{data: data, size: n, shmID: -1}, nil
}

// NewNamed attaches (creating if necessary) a System V shared memory
// segment identified by key, sized for an n-rank world. creator should
// be true for exactly one rank (conventionally rank 0) in the world;
// the remaining ranks retry the get until the creator has made the
// segment visible.
func NewNamed(n int32, key int32, creator bool) (*Plane, error) {
	length := int(n) * int(n) * channelSize()

	var id int
	var err error
	if creator {
		id, err = unix.SysvShmGet(int(key), length, unix.IPC_CREAT|0o666)
		if err != nil {
			return nil, fmt.Errorf("shm: shmget create key=%d: %w", key, err)
		}
	} else {
		for {
			id, err = unix.SysvShmGet(int(key), length, 0o666)
			if err == nil || err != unix.ENOENT {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("shm: shmget attach key=%d: %w", key, err)
		}
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: shmat id=%d: %w", id, err)
	}

	return &Plane{data: data, size: n, shmID: id, attached: true}, nil
}

// Close unmaps or detaches the plane's backing memory.
func (p *Plane) Close() error {
	if p.shmID == -1 {
		return unix.Munmap(p.data)
	}
	return unix.SysvShmDetach(&p.data[0])
}

// Size returns the world size this plane was allocated for.
func (p *Plane) Size() int32 { return p.size }

// At returns the channel carrying traffic from `from` to `to`.
func (p *Plane) At(from, to int32) *Channel {
	idx := int(from)*int(p.size) + int(to)
	off := idx * channelSize()
	return (*Channel)(unsafe.Pointer(&p.data[off]))
}
