package msgpool

import "testing"

func TestGet_SizeBuckets(t *testing.T) {
	tests := []struct {
		name        string
		requestSize int
		expectCap   int
	}{
		{"1KB bucket - exact", 1024, 1024},
		{"1KB bucket - smaller", 900, 1024},
		{"8KB bucket - exact", 8 * 1024, 8 * 1024},
		{"8KB bucket - smaller", 6 * 1024, 8 * 1024},
		{"64KB bucket - exact", 64 * 1024, 64 * 1024},
		{"256KB bucket - exact", 256 * 1024, 256 * 1024},
		{"1MB bucket - exact", 1024 * 1024, 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.requestSize)
			if len(buf) != tt.requestSize {
				t.Errorf("Get(%d) returned len=%d, want %d", tt.requestSize, len(buf), tt.requestSize)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("Get(%d) returned cap=%d, want %d", tt.requestSize, cap(buf), tt.expectCap)
			}
			Put(buf)
		})
	}
}

func TestGet_Aligned(t *testing.T) {
	for _, size := range []int{1, 100, 1024, 9000, 70000} {
		buf := Get(size)
		addr := uintptr(ptrOf(buf))
		if addr%alignment != 0 {
			t.Errorf("Get(%d) returned buffer at unaligned address %x", size, addr)
		}
		Put(buf)
	}
}

func TestPut_NonStandardCap(t *testing.T) {
	buf := make([]byte, 100*1024)
	Put(buf) // must not panic
}

func BenchmarkGet64KB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(64 * 1024)
		Put(buf)
	}
}
