//go:build amd64

package blockcopy

import (
	"unsafe"

	"github.com/klauspost/cpuid/v2"
)

// simdCopier chunks copies at a SIMD-register-width boundary matching
// the widest vector unit cpuid detected: an unaligned prologue brings
// dst up to a chunk-aligned address, the body moves whole chunks, and
// whatever remains under one chunk width is copied as a single tail.
// That shape mirrors a real VMOVNTDQA/VMOVDQA loop's alignment
// requirements even though the moves themselves still go through the
// stdlib copy() builtin rather than hand-written vector asm.
//
// Non-temporal copies additionally follow the body with an SFENCE so a
// peer spinning on the cell flag byte never observes the flag flip
// before the payload bytes it guards are globally visible.
type simdCopier struct {
	chunk int
	name  string
}

func selectCopier() Copier {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return simdCopier{chunk: 64, name: "avx512"}
	case cpuid.CPU.Supports(cpuid.AVX2):
		return simdCopier{chunk: 32, name: "avx2"}
	case cpuid.CPU.Supports(cpuid.SSE2):
		return simdCopier{chunk: 16, name: "sse2"}
	default:
		return genericCopier{}
	}
}

// copyChunked copies min(len(dst), len(src)) bytes in three passes: an
// alignment prologue, a chunk-width main loop, and a sub-chunk tail.
func (c simdCopier) copyChunked(dst, src []byte) int {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	d, s := dst[:n], src[:n]

	pos := 0
	if align := int(uintptr(unsafe.Pointer(&d[0])) % uintptr(c.chunk)); align != 0 {
		pos = c.chunk - align
		if pos > n {
			pos = n
		}
		copy(d[:pos], s[:pos])
	}

	for pos+c.chunk <= n {
		copy(d[pos:pos+c.chunk], s[pos:pos+c.chunk])
		pos += c.chunk
	}

	if pos < n {
		copy(d[pos:n], s[pos:n])
	}
	return n
}

func (c simdCopier) CopyTemporal(dst, src []byte) int {
	return c.copyChunked(dst, src)
}

func (c simdCopier) CopyNontemporal(dst, src []byte) int {
	n := c.copyChunked(dst, src)
	sfence()
	return n
}

func (c simdCopier) Name() string { return c.name }

var _ Copier = simdCopier{}

// sfence issues the SFENCE instruction, ordering prior stores ahead of
// it against any store that follows (including the cell flag flip the
// progress engine performs immediately after a non-temporal copy).
func sfence()
