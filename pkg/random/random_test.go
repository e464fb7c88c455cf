package random

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShuffle(t *testing.T) {
	in := Range(1, 15)
	got := Shuffle(NewSource(42), in)

	assert.Equal(t, Range(1, 15), in, "input must not be modified")
	assert.Len(t, got, 15)

	sorted := append([]int(nil), got...)
	sort.Ints(sorted)
	assert.Equal(t, in, sorted)
}

func TestShuffle_Deterministic(t *testing.T) {
	a := Shuffle(NewSource(7), Range(1, 75))
	b := Shuffle(NewSource(7), Range(1, 75))
	assert.Equal(t, a, b)
}

func TestPick(t *testing.T) {
	_, ok := Pick(NewSource(1), []string{})
	assert.False(t, ok)

	got, ok := Pick(NewSequence(2), []string{"a", "b", "c"})
	assert.True(t, ok)
	assert.Equal(t, "c", got)
}

func TestRange(t *testing.T) {
	assert.Equal(t, []int{16, 17, 18}, Range(16, 18))
	assert.Nil(t, Range(3, 1))
}
