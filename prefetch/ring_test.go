package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Equal(t, 0, wrap(0, 4))
	assert.Equal(t, 3, wrap(-1, 4))
	assert.Equal(t, 1, wrap(5, 4))
	assert.Equal(t, 2, wrap(-6, 4))
	assert.Equal(t, 0, wrap(7, 1))
}

func TestRing_Identity(t *testing.T) {
	r := newRing(4)
	assert.Equal(t, []int{0, 1, 2, 3}, r.ids)
	assert.Equal(t, 3, r.at(-1))
	assert.Equal(t, 1, r.at(5))
	assert.True(t, r.isBijection(4))
}

func TestRing_RotateOut(t *testing.T) {
	r := newRing(6)

	freed := r.rotateOut(1, 2)
	assert.Equal(t, 1, freed)
	assert.Equal(t, []int{0, 2, 3, 1, 4, 5}, r.ids)
	assert.True(t, r.isBijection(6))
}

func TestRing_RotateOutWraps(t *testing.T) {
	r := newRing(4)

	freed := r.rotateOut(3, 2)
	assert.Equal(t, 3, freed)
	// logical 3 <- 0, logical 0 <- 1, logical 1 <- freed
	assert.Equal(t, []int{1, 3, 2, 0}, r.ids)
	assert.True(t, r.isBijection(4))
}

func TestRing_RotateOutZero(t *testing.T) {
	r := newRing(3)
	assert.Equal(t, 2, r.rotateOut(2, 0))
	assert.Equal(t, []int{0, 1, 2}, r.ids)
}

func TestRing_Remove(t *testing.T) {
	r := newRing(4)
	r.rotateOut(0, 1) // [1 0 2 3]

	id := r.remove(1)
	assert.Equal(t, 0, id)
	assert.Equal(t, []int{1, 2, 3}, r.ids)
	assert.True(t, r.isBijection(4))
	assert.Equal(t, 3, r.size())
}

func TestRing_BijectionDetectsDuplicates(t *testing.T) {
	r := &ring{ids: []int{0, 2, 2}}
	assert.False(t, r.isBijection(4))

	r = &ring{ids: []int{0, 5}}
	assert.False(t, r.isBijection(4))
}
