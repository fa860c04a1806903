package mpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackBuildsDistinctRanks(t *testing.T) {
	lb, err := NewLoopback(4)
	require.NoError(t, err)
	defer lb.Close()

	assert.EqualValues(t, 4, lb.Size())
	for r := int32(0); r < 4; r++ {
		rc := lb.Rank(r)
		assert.Equalf(t, Rank(r), rc.Rank(), "rank %d", r)
		assert.EqualValuesf(t, 4, rc.WorldSize(), "rank %d", r)
	}
}

func TestLoopbackRejectsNonPositiveSize(t *testing.T) {
	_, err := NewLoopback(0)
	assert.Error(t, err)
	_, err = NewLoopback(-1)
	assert.Error(t, err)
}
