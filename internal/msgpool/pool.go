// Package msgpool provides pooled, 32-byte-aligned buffers for
// unexpected messages: payloads the progress engine has to buffer
// because they arrived before a matching Recv/Irecv was posted.
//
// Uses size-bucketed pools with power-of-2 sizes to balance memory
// efficiency with allocation reduction, and the pointer-to-slice
// sync.Pool pattern to avoid the interface-boxing allocation a plain
// sync.Pool of []byte would otherwise incur on every Get/Put.
package msgpool

import "sync"

// Buffer size buckets. Messages larger than the largest bucket get an
// exact-size allocation that is not returned to the pool.
const (
	size1k   = 1024
	size8k   = 8 * 1024
	size64k  = 64 * 1024
	size256k = 256 * 1024
	size1m   = 1024 * 1024

	// alignment is the byte alignment unexpected-message buffers must
	// satisfy, matching the progress engine's bulk-copy path.
	alignment = 32
)

var globalPool = struct {
	pool1k   sync.Pool
	pool8k   sync.Pool
	pool64k  sync.Pool
	pool256k sync.Pool
	pool1m   sync.Pool
}{
	pool1k:   sync.Pool{New: func() any { b := makeAligned(size1k); return &b }},
	pool8k:   sync.Pool{New: func() any { b := makeAligned(size8k); return &b }},
	pool64k:  sync.Pool{New: func() any { b := makeAligned(size64k); return &b }},
	pool256k: sync.Pool{New: func() any { b := makeAligned(size256k); return &b }},
	pool1m:   sync.Pool{New: func() any { b := makeAligned(size1m); return &b }},
}

// makeAligned returns a slice of exactly size bytes whose start address
// is a multiple of alignment, by over-allocating and trimming the
// unaligned prefix.
func makeAligned(size int) []byte {
	buf := make([]byte, size+alignment)
	addr := uintptr(ptrOf(buf))
	off := int((alignment - addr%alignment) % alignment)
	return buf[off : off+size : off+size]
}

// Get returns a pooled, 32-byte-aligned buffer of exactly size bytes.
// Buffers larger than the largest bucket are allocated directly and
// are not poolable; Put silently drops them.
func Get(size int) []byte {
	switch {
	case size <= size1k:
		return (*globalPool.pool1k.Get().(*[]byte))[:size]
	case size <= size8k:
		return (*globalPool.pool8k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return makeAligned(size)
	}
}

// Put returns a buffer obtained from Get back to its pool, selecting
// the bucket by capacity. Buffers whose capacity doesn't match any
// bucket exactly (i.e. those from the size > 1MB path) are dropped.
func Put(buf []byte) {
	switch cap(buf) {
	case size1k:
		globalPool.pool1k.Put(&buf)
	case size8k:
		globalPool.pool8k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size256k:
		globalPool.pool256k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	}
}
