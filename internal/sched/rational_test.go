package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCD(t *testing.T) {
	cases := []struct{ a, b, want uint64 }{
		{12, 8, 4},
		{8, 12, 4},
		{17, 5, 1},
		{0, 5, 5},
		{5, 0, 5},
		{100000, 100000, 100000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, GCD(c.a, c.b), "GCD(%d,%d)", c.a, c.b)
	}
}

func TestLCM(t *testing.T) {
	got, err := LCM(4, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), got)

	got, err = LCM(100000, 100000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), got)

	got, err = LCM(0, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestLCMOverflow(t *testing.T) {
	_, err := LCM(1<<63, (1<<63)+1)
	assert.ErrorIs(t, err, ErrOverflow)
}
