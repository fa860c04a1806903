package mpi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommDupIsolatesTraffic checks that a dup'd communicator gets a
// fresh tag-namespace key: a message sent on the original comm and
// one sent on the dup with the same user tag don't cross-match.
func TestCommDupIsolatesTraffic(t *testing.T) {
	lb, err := NewLoopback(2)
	require.NoError(t, err)
	defer lb.Close()

	var wg sync.WaitGroup
	dups := make([]CommId, 2)
	errs := make([]error, 2)
	wg.Add(2)
	for r := int32(0); r < 2; r++ {
		r := r
		go func() {
			defer wg.Done()
			dups[r], errs[r] = lb.Rank(r).Comm_dup(CommWorld)
		}()
	}
	wg.Wait()

	for r, err := range errs {
		require.NoErrorf(t, err, "rank %d", r)
	}
	assert.NotEqual(t, CommWorld, dups[0])
	assert.NotEqual(t, CommWorld, dups[1])

	// A send on world (tag 3) goes out ahead of a send on the dup (tag
	// 3) while rank 1 receives on the dup first: the world message must
	// not satisfy the dup receive, proving the namespaces are distinct.
	wg.Add(2)
	var dupRecvErr, worldRecvErr error
	go func() {
		defer wg.Done()
		buf := make([]byte, 1)
		_, dupRecvErr = lb.Rank(1).Recv(buf, 1, Byte, 0, 3, dups[1])
		assert.Equal(t, byte(9), buf[0])
		buf = make([]byte, 1)
		_, worldRecvErr = lb.Rank(1).Recv(buf, 1, Byte, 0, 3, CommWorld)
		assert.Equal(t, byte(5), buf[0])
	}()
	go func() {
		defer wg.Done()
		_ = lb.Rank(0).Send([]byte{5}, 1, Byte, 1, 3, CommWorld)
		_ = lb.Rank(0).Send([]byte{9}, 1, Byte, 1, 3, dups[0])
	}()
	wg.Wait()
	require.NoError(t, dupRecvErr)
	require.NoError(t, worldRecvErr)
}

// TestCommSplitPartitionsByColor splits a 4-rank world into two
// 2-member communicators by parity and checks each new communicator's
// local ranks and size.
func TestCommSplitPartitionsByColor(t *testing.T) {
	const n = 4
	lb, err := NewLoopback(n)
	require.NoError(t, err)
	defer lb.Close()

	var wg sync.WaitGroup
	splits := make([]CommId, n)
	errs := make([]error, n)
	wg.Add(n)
	for r := int32(0); r < n; r++ {
		r := r
		go func() {
			defer wg.Done()
			color := r % 2
			splits[r], errs[r] = lb.Rank(r).Comm_split(CommWorld, color, r)
		}()
	}
	wg.Wait()

	for r, err := range errs {
		require.NoErrorf(t, err, "rank %d", r)
	}

	for r := int32(0); r < n; r++ {
		size, err := lb.Rank(r).Comm_size(splits[r])
		require.NoErrorf(t, err, "rank %d", r)
		assert.Equalf(t, int32(2), size, "rank %d split size", r)
	}

	// Ranks 0 and 2 (color 0) should be local ranks 0 and 1 in key
	// order (key == global rank here, so order matches global order).
	rank0, _ := lb.Rank(0).Comm_rank(splits[0])
	rank2, _ := lb.Rank(2).Comm_rank(splits[2])
	assert.Equal(t, int32(0), rank0)
	assert.Equal(t, int32(1), rank2)
}

// TestCommSplitNegativeColorReturnsCommNull matches MPI_UNDEFINED
// semantics: a rank passing a negative color gets CommNull back.
func TestCommSplitNegativeColorReturnsCommNull(t *testing.T) {
	const n = 3
	lb, err := NewLoopback(n)
	require.NoError(t, err)
	defer lb.Close()

	var wg sync.WaitGroup
	splits := make([]CommId, n)
	errs := make([]error, n)
	wg.Add(n)
	for r := int32(0); r < n; r++ {
		r := r
		go func() {
			defer wg.Done()
			color := int32(0)
			if r == 2 {
				color = -1
			}
			splits[r], errs[r] = lb.Rank(r).Comm_split(CommWorld, color, 0)
		}()
	}
	wg.Wait()

	for r, err := range errs {
		require.NoErrorf(t, err, "rank %d", r)
	}
	assert.Equal(t, CommNull, splits[2])
	assert.NotEqual(t, CommNull, splits[0])
	assert.NotEqual(t, CommNull, splits[1])
}

func TestCommGetSetErrhandler(t *testing.T) {
	lb, err := NewLoopback(1)
	require.NoError(t, err)
	defer lb.Close()

	rc := lb.Rank(0)
	h, err := rc.Comm_get_errhandler(CommWorld)
	require.NoError(t, err)
	assert.Equal(t, ReturnErrHandler, h, "Loopback default handler should be ReturnErrHandler")

	require.NoError(t, rc.Comm_set_errhandler(CommWorld, FatalErrHandler))
	h, err = rc.Comm_get_errhandler(CommWorld)
	require.NoError(t, err)
	assert.Equal(t, FatalErrHandler, h)
}

func TestCommSizeInvalidCommReturnsErrComm(t *testing.T) {
	lb, err := NewLoopback(1)
	require.NoError(t, err)
	defer lb.Close()

	_, err = lb.Rank(0).Comm_size(CommId(9999))
	assert.Equal(t, ErrComm, Error_class(err))
}
