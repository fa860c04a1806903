package mpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringKnownClasses(t *testing.T) {
	cases := []struct {
		class ErrorClass
		want  string
	}{
		{ErrSuccess, "no error"},
		{ErrTruncate, "message truncated on receive"},
		{ErrRoot, "invalid root"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Error_string(tc.class))
	}
}

func TestErrorStringUnknownClass(t *testing.T) {
	assert.Equal(t, "unknown error class", Error_string(ErrorClass(999)))
}
