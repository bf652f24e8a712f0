package eskf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

func freshFilter() *Filter {
	f := New(DefaultOptions())
	f.SetInitial(NavState{
		TimeSec:  0,
		P:        navtypes.Vec3{},
		V:        navtypes.Vec3{},
		R:        rotation.Identity(),
		Gravity:  navtypes.Vec3{Z: -DefaultGravity},
	})
	return f
}

func TestPredictRequiresSetInitial(t *testing.T) {
	f := New(DefaultOptions())
	assert.Panics(t, func() {
		f.Predict(0.1, navtypes.Vec3{}, navtypes.Vec3{})
	})
}

func TestSetInitialIsIdempotent(t *testing.T) {
	f := freshFilter()
	before := f.Nominal()
	f.SetInitial(before)
	after := f.Nominal()
	assert.Equal(t, before, after)
}

func TestStaticIMUKeepsStateNearZero(t *testing.T) {
	f := freshFilter()
	dt := 0.04
	accel := navtypes.Vec3{Z: DefaultGravity}
	gyro := navtypes.Vec3{}
	tsec := 0.0
	for i := 0; i < 100; i++ {
		tsec += dt
		f.Predict(tsec, accel, gyro)
	}
	n := f.Nominal()
	assert.InDelta(t, 0.0, n.P.X, 1e-6)
	assert.InDelta(t, 0.0, n.P.Y, 1e-6)
	assert.InDelta(t, 0.0, n.P.Z, 1e-6)
	assert.InDelta(t, 0.0, n.V.X, 1e-6)
}

func TestPredictSkipsNegativeDt(t *testing.T) {
	f := freshFilter()
	f.Predict(0.1, navtypes.Vec3{Z: DefaultGravity}, navtypes.Vec3{})
	tAfter := f.Nominal().TimeSec
	ok := f.Predict(0.05, navtypes.Vec3{Z: DefaultGravity}, navtypes.Vec3{})
	assert.False(t, ok)
	assert.Equal(t, tAfter, f.Nominal().TimeSec)
}

func TestPredictBoundaryAtFiveNominalPeriods(t *testing.T) {
	f := freshFilter()
	nominal := f.opts.ImuDTNominal

	f2 := freshFilter()
	ok := f2.Predict(5*nominal, navtypes.Vec3{Z: DefaultGravity}, navtypes.Vec3{})
	assert.True(t, ok)
	assert.InDelta(t, 5*nominal, f2.Nominal().TimeSec, 1e-9)

	f3 := freshFilter()
	ok3 := f3.Predict(5*nominal+1e-6, navtypes.Vec3{Z: DefaultGravity}, navtypes.Vec3{})
	assert.True(t, ok3) // accepted, but as a time-advance-only skip
	assert.InDelta(t, 5*nominal+1e-6, f3.Nominal().TimeSec, 1e-9)
	assert.InDelta(t, 0.0, f3.Nominal().P.X, 1e-12)
	assert.InDelta(t, 0.0, f3.Nominal().V.X, 1e-12)
}

func TestCovarianceStaysSymmetric(t *testing.T) {
	f := freshFilter()
	f.Predict(0.04, navtypes.Vec3{X: 0.2, Z: DefaultGravity}, navtypes.Vec3{Y: 0.01})
	f.ObserveGps(navtypes.Vec3{X: 1, Y: 0.5}, 10, true)
	for i := 0; i < errDim; i++ {
		for j := 0; j < errDim; j++ {
			assert.InDelta(t, f.cov.At(i, j), f.cov.At(j, i), 1e-10)
		}
	}
}

func TestObserveSE3AtCurrentPoseLeavesStateUnchanged(t *testing.T) {
	f := freshFilter()
	f.Predict(0.04, navtypes.Vec3{X: 0.1, Z: DefaultGravity}, navtypes.Vec3{})
	f.ObserveGps(navtypes.Vec3{X: 0.5}, 0, true)
	// Observing again at the current pose with tight noise should leave the
	// state close to unchanged (round-trip property).
	before := f.Nominal()
	f.ObserveSE3(before.P, before.R, 1e-6, 1e-6)
	after := f.Nominal()
	assert.InDelta(t, before.P.X, after.P.X, 1e-3)
	assert.InDelta(t, before.P.Y, after.P.Y, 1e-3)
}

func TestFirstGNSSInitSkipsUpdate(t *testing.T) {
	f := freshFilter()
	f.SetFirstGNSSPending(true)
	f.ObserveGps(navtypes.Vec3{X: 10, Y: 20}, 45, true)
	n := f.Nominal()
	assert.InDelta(t, 10, n.P.X, 1e-9)
	assert.InDelta(t, 20, n.P.Y, 1e-9)
	heading := f.CurrentHeading() * 180 / math.Pi
	assert.InDelta(t, 45, heading, 1e-6)
}

func TestFirstGNSSInitWithInvalidHeadingUsesIdentity(t *testing.T) {
	f := freshFilter()
	f.SetFirstGNSSPending(true)
	f.ObserveGps(navtypes.Vec3{X: 3, Y: 4}, 99, false)
	n := f.Nominal()
	assert.InDelta(t, 3, n.P.X, 1e-9)
	assert.Equal(t, rotation.Identity().Matrix(), n.R.Matrix())
}

func TestObservePositionOnlyDoesNotTouchOrientation(t *testing.T) {
	f := freshFilter()
	f.Predict(0.04, navtypes.Vec3{X: 0.1, Z: DefaultGravity}, navtypes.Vec3{Z: 0.2})
	before := f.Nominal().R
	f.ObservePositionOnly(navtypes.Vec3{X: 1}, 5.0)
	require.Equal(t, before.Matrix(), f.Nominal().R.Matrix())
}

func TestSaveCovDiagFormat(t *testing.T) {
	f := freshFilter()
	line := f.SaveCovDiag()
	assert.Contains(t, line, "0.000000000000000000")
}
