package msgpool

import "unsafe"

// ptrOf returns the address of buf's backing array, for alignment
// arithmetic in makeAligned. Never dereferenced as a pointer.
func ptrOf(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(buf))
}
