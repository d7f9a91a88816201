package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulDivDown_NoOverflowOnLargeOperands(t *testing.T) {
	maxU64 := ^uint64(0)
	got := MulDivDown(maxU64, 2, 4)
	assert.Equal(t, maxU64/2, got)
}

func TestMulDivUp_RoundsAwayFromZero(t *testing.T) {
	assert.Equal(t, uint64(4), MulDivUp(10, 1, 3))
	assert.Equal(t, uint64(3), MulDivDown(10, 1, 3))
}

func TestAbsDiff(t *testing.T) {
	assert.Equal(t, uint64(5), AbsDiff(10, 5))
	assert.Equal(t, uint64(5), AbsDiff(5, 10))
	assert.Equal(t, uint64(0), AbsDiff(7, 7))
}

func TestMinMaxU64(t *testing.T) {
	assert.Equal(t, uint64(3), MinU64(3, 9))
	assert.Equal(t, uint64(9), MaxU64(3, 9))
}
