// Package reqslot implements the fixed-capacity slot tables backing
// per-rank send/recv/unexpected request queues: a ring of stable-address
// slots with an occupied flag per slot, so a pending request can be
// referenced by pointer across progress-engine calls without ever
// relocating.
package reqslot

import "unsafe"

// Table is a fixed-capacity ring of T with stable slot addresses.
// Zero value is not usable; construct with NewTable.
type Table[T any] struct {
	items []T
	flags []bool
	size  int
	head  int
	tail  int
}

// NewTable allocates a table with room for capacity live entries.
func NewTable[T any](capacity int) *Table[T] {
	return &Table[T]{
		items: make([]T, capacity),
		flags: make([]bool, capacity),
	}
}

// Cap returns the table's fixed capacity.
func (t *Table[T]) Cap() int { return len(t.items) }

// Len returns the number of occupied slots.
func (t *Table[T]) Len() int { return t.size }

// Push reserves the next free slot and returns its stable address. The
// second return is false if the table is at capacity.
func (t *Table[T]) Push() (*T, bool) {
	n := len(t.items)
	if n == 0 {
		return nil, false
	}
	if t.size == 0 {
		t.head = 0
		t.tail = 1 % n
		t.flags[0] = true
		t.size++
		var zero T
		t.items[0] = zero
		return &t.items[0], true
	}
	if t.size < n {
		idx := t.tail
		for t.flags[idx] {
			idx = (idx + 1) % n
		}
		t.tail = (idx + 1) % n
		t.flags[idx] = true
		t.size++
		var zero T
		t.items[idx] = zero
		return &t.items[idx], true
	}
	return nil, false
}

// indexOf returns the slot index backing ptr, or -1 if ptr does not
// point into this table's backing array.
func (t *Table[T]) indexOf(ptr *T) int {
	if len(t.items) == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(&t.items[0]))
	p := uintptr(unsafe.Pointer(ptr))
	var sample T
	sz := unsafe.Sizeof(sample)
	if p < base {
		return -1
	}
	diff := p - base
	idx := int(diff / uintptr(sz))
	if idx < 0 || idx >= len(t.items) || diff%uintptr(sz) != 0 {
		return -1
	}
	return idx
}

// Contains reports whether ptr references a currently-occupied slot in
// this table.
func (t *Table[T]) Contains(ptr *T) bool {
	idx := t.indexOf(ptr)
	return idx >= 0 && t.flags[idx]
}

// Erase frees the slot referenced by ptr, preserving ring order for
// iteration. It is a no-op if ptr does not reference an occupied slot
// in this table.
func (t *Table[T]) Erase(ptr *T) {
	idx := t.indexOf(ptr)
	if idx < 0 || !t.flags[idx] {
		return
	}
	t.eraseIdx(idx)
}

func (t *Table[T]) eraseIdx(i int) {
	n := len(t.items)
	if t.size == 0 {
		return
	}

	t.flags[i] = false

	switch {
	case i == t.head:
		for {
			i = (i + 1) % n
			if t.flags[i] {
				t.head = i
				break
			}
			if i == t.tail {
				break
			}
		}
	case i == t.tail:
		for {
			i = (n + i - 1) % n
			if t.flags[i] {
				t.tail = i
				break
			}
			if i == t.head {
				t.tail = t.head
				break
			}
		}
	}
	t.size--
}

// Each calls fn for every occupied slot in ring order, stopping early
// if fn returns false.
func (t *Table[T]) Each(fn func(*T) bool) {
	if t.size == 0 {
		return
	}
	n := len(t.items)
	idx := t.head
	for count := 0; count < t.size; count++ {
		if !fn(&t.items[idx]) {
			return
		}
		for {
			idx = (idx + 1) % n
			if t.flags[idx] || idx == t.head {
				break
			}
		}
	}
}

// Find returns the first occupied slot for which pred returns true, or
// nil if none matches.
func (t *Table[T]) Find(pred func(*T) bool) *T {
	var found *T
	t.Each(func(item *T) bool {
		if pred(item) {
			found = item
			return false
		}
		return true
	})
	return found
}
