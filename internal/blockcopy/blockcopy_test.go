package blockcopy

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCopyTemporalRoundTrip(t *testing.T) {
	src := make([]byte, 4096)
	rand.Read(src)
	dst := make([]byte, 4096)

	n := Default.CopyTemporal(dst, src)
	if n != len(src) {
		t.Fatalf("CopyTemporal returned %d, want %d", n, len(src))
	}
	if !bytes.Equal(dst, src) {
		t.Fatal("CopyTemporal produced mismatched bytes")
	}
}

func TestCopyNontemporalRoundTrip(t *testing.T) {
	src := make([]byte, NontemporalThreshold*2)
	rand.Read(src)
	dst := make([]byte, len(src))

	n := Default.CopyNontemporal(dst, src)
	if n != len(src) {
		t.Fatalf("CopyNontemporal returned %d, want %d", n, len(src))
	}
	if !bytes.Equal(dst, src) {
		t.Fatal("CopyNontemporal produced mismatched bytes")
	}
}

func TestCopyTruncatesToShorterBuffer(t *testing.T) {
	src := []byte("hello, world")
	dst := make([]byte, 5)

	n := Default.CopyTemporal(dst, src)
	if n != 5 {
		t.Fatalf("expected truncated copy of 5 bytes, got %d", n)
	}
	if string(dst) != "hello" {
		t.Fatalf("unexpected dst content: %q", dst)
	}
}

func TestNameNonEmpty(t *testing.T) {
	if Default.Name() == "" {
		t.Fatal("Copier.Name() must not be empty")
	}
}

func BenchmarkCopyTemporal(b *testing.B) {
	sizes := []int{256, 4096, 64 * 1024}
	for _, size := range sizes {
		src := make([]byte, size)
		dst := make([]byte, size)
		rand.Read(src)
		b.Run(Default.Name(), func(b *testing.B) {
			b.SetBytes(int64(size))
			for i := 0; i < b.N; i++ {
				Default.CopyTemporal(dst, src)
			}
		})
	}
}
