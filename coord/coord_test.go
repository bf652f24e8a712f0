package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginLatchesToFirstFix(t *testing.T) {
	var c Converter
	r, ok := c.Convert(30.0, 120.0, 10.0, 0, true)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, r.X, 1e-6)
	assert.InDelta(t, 0.0, r.Y, 1e-6)
	assert.InDelta(t, 0.0, r.Z, 1e-6)
}

func TestAltitudeIsOriginRelative(t *testing.T) {
	var c Converter
	first, ok := c.Convert(30.0, 120.0, 100.0, 0, true)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, first.Z, 1e-6)

	later, ok := c.Convert(30.0, 120.0, 137.5, 0, true)
	assert.True(t, ok)
	assert.InDelta(t, 37.5, later.Z, 1e-6)
}

func TestRejectsOutOfRangeLatLon(t *testing.T) {
	var c Converter
	_, ok := c.Convert(120.0, 0, 0, 0, true)
	assert.False(t, ok)
}

func TestAntennaLeverArmCorrection(t *testing.T) {
	c := Converter{AntennaOffsetX: 1.0}
	c.SetOrigin(30.0, 120.0, 0)
	r, ok := c.Convert(30.0, 120.0, 0, 0, true) // heading 0 => body +X is east
	assert.True(t, ok)
	assert.InDelta(t, -1.0, r.X, 1e-9)
	assert.InDelta(t, 0.0, r.Y, 1e-9)
}

func TestHeadingValidityCarriesThrough(t *testing.T) {
	var c Converter
	r, ok := c.Convert(30.0, 120.0, 0, 45, false)
	assert.True(t, ok)
	assert.False(t, r.HeadingValid)

	invalid := ForceInvalidateHeading(Result{HeadingDeg: 45, HeadingValid: true})
	assert.False(t, invalid.HeadingValid)
}
