package progress

import (
	"bytes"
	"testing"

	"github.com/behrlich/shmmpi/internal/constants"
	"github.com/behrlich/shmmpi/internal/shm"
	"github.com/behrlich/shmmpi/internal/wire"
)

func newTestPlane(t *testing.T) *shm.Plane {
	t.Helper()
	p, err := shm.NewAnonymous(2)
	if err != nil {
		t.Fatalf("NewAnonymous: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSendThenRecvSingleSegment(t *testing.T) {
	plane := newTestPlane(t)
	sendQ := NewQueues(4)
	recvQ := NewQueues(4)

	payload := []byte("hello world")
	s, _ := sendQ.Send.Push()
	s.Buf = payload
	s.Cnt = int32(len(payload))
	s.Rank = 1
	s.Tag = 7

	if err := Run(plane, 0, sendQ); err != nil {
		t.Fatalf("send Run: %v", err)
	}
	if !s.Done() {
		t.Fatal("send did not complete in one pass")
	}

	dst := make([]byte, 32)
	r, _ := recvQ.Recv.Push()
	r.Buf = dst
	r.Rank = 0
	r.Tag = 7

	if err := Run(plane, 1, recvQ); err != nil {
		t.Fatalf("recv Run: %v", err)
	}
	if !r.Done() {
		t.Fatal("recv did not complete")
	}
	if r.Cnt != int32(len(payload)) {
		t.Fatalf("Cnt = %d, want %d", r.Cnt, len(payload))
	}
	if !bytes.Equal(dst[:r.Cnt], payload) {
		t.Fatalf("dst = %q, want %q", dst[:r.Cnt], payload)
	}
	if r.Stat.Error != 0 {
		t.Fatalf("Stat.Error = %d, want 0", r.Stat.Error)
	}
}

func TestRecvTagMismatchParksUnexpected(t *testing.T) {
	plane := newTestPlane(t)
	sendQ := NewQueues(4)
	recvQ := NewQueues(4)

	payload := []byte("surprise")
	s, _ := sendQ.Send.Push()
	s.Buf = payload
	s.Cnt = int32(len(payload))
	s.Rank = 1
	s.Tag = 9
	if err := Run(plane, 0, sendQ); err != nil {
		t.Fatalf("send Run: %v", err)
	}

	dst := make([]byte, 32)
	r, _ := recvQ.Recv.Push()
	r.Buf = dst
	r.Rank = 0
	r.Tag = 1 // does not match the sender's tag 9

	if err := Run(plane, 1, recvQ); err != nil {
		t.Fatalf("recv Run: %v", err)
	}
	if r.Done() {
		t.Fatal("mismatched recv should not complete")
	}

	hit := MatchUnexpected(recvQ, 0, 9)
	if hit == nil {
		t.Fatal("expected an unexpected-queue entry for tag 9")
	}
	if !bytes.Equal(hit.Buf[:hit.Cnt], payload) {
		t.Fatalf("unexpected payload = %q, want %q", hit.Buf[:hit.Cnt], payload)
	}

	stat := CompleteFromUnexpected(recvQ, hit, dst)
	if stat.Count != int32(len(payload)) {
		t.Fatalf("stat.Count = %d, want %d", stat.Count, len(payload))
	}
	if !bytes.Equal(dst[:stat.Count], payload) {
		t.Fatalf("dst after CompleteFromUnexpected = %q, want %q", dst[:stat.Count], payload)
	}
	if recvQ.Unexp.Len() != 0 {
		t.Fatalf("Unexp.Len() = %d, want 0 after completion", recvQ.Unexp.Len())
	}
}

func TestTruncationSetsErrorClass(t *testing.T) {
	plane := newTestPlane(t)
	sendQ := NewQueues(4)
	recvQ := NewQueues(4)

	payload := []byte("longer than the receiver's buffer")
	s, _ := sendQ.Send.Push()
	s.Buf = payload
	s.Cnt = int32(len(payload))
	s.Rank = 1
	s.Tag = 3
	if err := Run(plane, 0, sendQ); err != nil {
		t.Fatalf("send Run: %v", err)
	}

	dst := make([]byte, 4)
	r, _ := recvQ.Recv.Push()
	r.Buf = dst
	r.Rank = 0
	r.Tag = 3

	if err := Run(plane, 1, recvQ); err != nil {
		t.Fatalf("recv Run: %v", err)
	}
	if !r.Done() {
		t.Fatal("truncated recv should still complete")
	}
	if r.Stat.Error != int32(wire.ErrTruncate) {
		t.Fatalf("Stat.Error = %d, want ErrTruncate", r.Stat.Error)
	}
	if r.Cnt != int32(len(payload)) {
		t.Fatalf("Cnt = %d, want full message length %d", r.Cnt, len(payload))
	}
	if !bytes.Equal(dst, payload[:len(dst)]) {
		t.Fatalf("dst = %q, want prefix %q", dst, payload[:len(dst)])
	}
}

func TestMultiSegmentMessageSpansCells(t *testing.T) {
	plane := newTestPlane(t)
	sendQ := NewQueues(4)
	recvQ := NewQueues(4)

	size := constants.DefaultCellBuf + 128
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}

	s, _ := sendQ.Send.Push()
	s.Buf = payload
	s.Cnt = int32(size)
	s.Rank = 1
	s.Tag = 5
	if err := Run(plane, 0, sendQ); err != nil {
		t.Fatalf("send Run: %v", err)
	}
	if !s.Done() {
		t.Fatal("two-segment send should complete within one Run given two free cells")
	}

	dst := make([]byte, size)
	r, _ := recvQ.Recv.Push()
	r.Buf = dst
	r.Rank = 0
	r.Tag = 5

	if err := Run(plane, 1, recvQ); err != nil {
		t.Fatalf("recv Run: %v", err)
	}
	if !r.Done() {
		t.Fatal("recv did not complete")
	}
	if !bytes.Equal(dst, payload) {
		t.Fatal("multi-segment payload mismatch")
	}
}
