package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickLowestWhenAllReady(t *testing.T) {
	rr := New(4)
	idx, ok := rr.Pick(0b1111)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestNoStarvation(t *testing.T) {
	rr := New(3)
	var order []int
	for i := 0; i < 6; i++ {
		idx, ok := rr.PickAndAdvance(0b111)
		require.True(t, ok)
		order = append(order, idx)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, order)
}

func TestPickSkipsNotReady(t *testing.T) {
	rr := New(4)
	idx, ok := rr.Pick(0b1010)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestPickEmptyReturnsFalse(t *testing.T) {
	rr := New(4)
	_, ok := rr.Pick(0)
	assert.False(t, ok)
}

func TestAdvanceWrapsAround(t *testing.T) {
	rr := New(3)
	rr.Advance(2)
	idx, ok := rr.PickAndAdvance(0b111)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}
