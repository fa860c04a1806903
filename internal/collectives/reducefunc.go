package collectives

import (
	"unsafe"

	"github.com/behrlich/shmmpi/internal/wire"
)

// apply folds count dtype-typed elements of src into dst in place
// according to op. Both slices must hold at least count elements.
func apply(op wire.Op, dtype wire.Datatype, src, dst []byte, count int32) {
	if count == 0 {
		return
	}
	switch dtype {
	case wire.Byte:
		applyBytes(op, src, dst, count)
	case wire.Int:
		applyInts(op, src, dst, count)
	case wire.Double:
		applyDoubles(op, src, dst, count)
	}
}

func applyBytes(op wire.Op, src, dst []byte, count int32) {
	for i := int32(0); i < count; i++ {
		switch op {
		case wire.OpSum:
			dst[i] += src[i]
		case wire.OpMin:
			if src[i] < dst[i] {
				dst[i] = src[i]
			}
		case wire.OpMax:
			if src[i] > dst[i] {
				dst[i] = src[i]
			}
		}
	}
}

func applyInts(op wire.Op, src, dst []byte, count int32) {
	s := unsafe.Slice((*int32)(unsafe.Pointer(&src[0])), count)
	d := unsafe.Slice((*int32)(unsafe.Pointer(&dst[0])), count)
	for i := int32(0); i < count; i++ {
		switch op {
		case wire.OpSum:
			d[i] += s[i]
		case wire.OpMin:
			if s[i] < d[i] {
				d[i] = s[i]
			}
		case wire.OpMax:
			if s[i] > d[i] {
				d[i] = s[i]
			}
		}
	}
}

func applyDoubles(op wire.Op, src, dst []byte, count int32) {
	s := unsafe.Slice((*float64)(unsafe.Pointer(&src[0])), count)
	d := unsafe.Slice((*float64)(unsafe.Pointer(&dst[0])), count)
	for i := int32(0); i < count; i++ {
		switch op {
		case wire.OpSum:
			d[i] += s[i]
		case wire.OpMin:
			if s[i] < d[i] {
				d[i] = s[i]
			}
		case wire.OpMax:
			if s[i] > d[i] {
				d[i] = s[i]
			}
		}
	}
}
