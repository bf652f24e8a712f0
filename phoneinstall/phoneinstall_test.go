package phoneinstall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityCompensatorIsNoOp(t *testing.T) {
	c := Identity()
	v := [3]float64{1, 2, 3}
	got := c.Apply(v)
	assert.InDelta(t, v[0], got[0], 1e-12)
	assert.InDelta(t, v[1], got[1], 1e-12)
	assert.InDelta(t, v[2], got[2], 1e-12)
}

func TestHeadingOnlyInstallRotatesXY(t *testing.T) {
	c := New(0, 0, 90)
	got := c.Apply([3]float64{1, 0, 0})
	assert.InDelta(t, 0.0, got[0], 1e-9)
	assert.InDelta(t, -1.0, got[1], 1e-9)
}
