// Package eskf implements the 18-dimensional error-state Kalman filter that
// fuses IMU propagation with RTK-GNSS position/pose observations into a
// smooth navigation solution. The nominal state lives on the SO(3)
// manifold; the error state is a flat 18-vector
// [dp(3) dv(3) dtheta(3) dbg(3) dba(3) dg(3)] perturbing it on the right
// (R <- R * Exp(dtheta)), propagated and corrected with gonum/mat the same
// way the teacher's indoor filter drives its own Kalman gain through a
// gonum SVD pseudo-inverse.
package eskf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

const errDim = 18

// error-state block offsets.
const (
	idxDP     = 0
	idxDV     = 3
	idxDTheta = 6
	idxDBg    = 9
	idxDBa    = 12
	idxDG     = 15
)

// Filter is the error-state Kalman filter. It is not safe for concurrent
// use: predict/observe calls must be serialized by the caller, matching the
// single-threaded event-pipeline model the filter is embedded in.
type Filter struct {
	opts Options

	nominal NavState
	cov     *mat.Dense // 18x18, P
	q       *mat.Dense // 18x18 process noise, diagonal
	gnssR   *mat.Dense // 6x6 GNSS pose observation noise, diagonal (not read by the observe functions)
	gnssRPos *mat.Dense // 3x3 GNSS position-only observation noise, diagonal (not read by the observe functions)

	firstGNSSPending bool
	hasInitial       bool

	lastLateralResidual float64
	lastResidual        [3]float64
	lastSpeed           float64
}

// New creates a filter with the given options. SetInitial must be called
// before the first Predict or observation.
func New(opts Options) *Filter {
	f := &Filter{opts: opts}
	f.cov = mat.NewDense(errDim, errDim, nil)
	for i := 0; i < errDim; i++ {
		f.cov.Set(i, i, 1e-4)
	}
	f.buildNoise()
	f.nominal.Gravity = navtypes.Vec3{Z: -DefaultGravity}
	return f
}

func (f *Filter) buildNoise() {
	f.q = mat.NewDense(errDim, errDim, nil)
	// delta-p and delta-g blocks carry no direct process noise: delta-p is
	// driven through the velocity block, and delta-g is held constant by the
	// process model (its row of F is identity).
	gv, av := f.opts.GyroVar, f.opts.AcceVar
	bgv, bav := f.opts.BiasGyroVar, f.opts.BiasAcceVar
	for i := 0; i < 3; i++ {
		f.q.Set(idxDV+i, idxDV+i, av)
		f.q.Set(idxDTheta+i, idxDTheta+i, gv)
		f.q.Set(idxDBg+i, idxDBg+i, bgv)
		f.q.Set(idxDBa+i, idxDBa+i, bav)
	}

	gp := f.opts.GNSSPosNoise * f.opts.GNSSPosNoise
	gh := f.opts.GNSSHeightNoise * f.opts.GNSSHeightNoise
	gaRad := f.opts.GNSSAngNoise * math.Pi / 180
	ga := gaRad * gaRad

	f.gnssR = mat.NewDense(6, 6, nil)
	f.gnssR.Set(0, 0, gp)
	f.gnssR.Set(1, 1, gp)
	f.gnssR.Set(2, 2, gh)
	f.gnssR.Set(3, 3, ga)
	f.gnssR.Set(4, 4, ga)
	f.gnssR.Set(5, 5, ga)

	f.gnssRPos = mat.NewDense(3, 3, nil)
	f.gnssRPos.Set(0, 0, gp)
	f.gnssRPos.Set(1, 1, gp)
	f.gnssRPos.Set(2, 2, gh)
}

// SetInitial seeds the nominal state. Calling it again re-seeds the filter
// from scratch (it is idempotent: calling it twice with the same state
// leaves the same state and a reset covariance).
func (f *Filter) SetInitial(state NavState) {
	f.nominal = state
	f.cov = mat.NewDense(errDim, errDim, nil)
	for i := 0; i < errDim; i++ {
		f.cov.Set(i, i, 1e-4)
	}
	f.hasInitial = true
}

// SetFirstGNSSPending marks that the next GNSS observation should bypass
// the Kalman update and instead directly set position and orientation
// (first-GNSS initialization), per ObserveGps/ObservePositionOnlyGNSS.
// The filter's clock is not changed by that initialization.
func (f *Filter) SetFirstGNSSPending(pending bool) { f.firstGNSSPending = pending }

// Nominal returns the current nominal navigation state.
func (f *Filter) Nominal() NavState { return f.nominal }

// HasInitial reports whether SetInitial has been called.
func (f *Filter) HasInitial() bool { return f.hasInitial }

// CurrentHeading returns the current yaw heading in radians, derived from
// the nominal rotation matrix (atan2 of its first column's y/x components).
func (f *Filter) CurrentHeading() float64 {
	m := f.nominal.R.Matrix()
	return math.Atan2(m[1][0], m[0][0])
}

// SaveCovDiag writes one line: an 18-digit-precision timestamp followed by
// the 18 covariance diagonal entries at 9-digit precision.
func (f *Filter) SaveCovDiag() string {
	s := fmt.Sprintf("%.18f", f.nominal.TimeSec)
	for i := 0; i < errDim; i++ {
		s += fmt.Sprintf(" %.9f", f.cov.At(i, i))
	}
	return s
}

// LateralResidual returns the most recently computed lateral residual, a
// diagnostic-only quantity never fed back into the filter.
func (f *Filter) LateralResidual() float64 { return f.lastLateralResidual }

func skew(v [3]float64) [3][3]float64 { return rotation.Hat(v) }

func matFromArr3x3(m [3][3]float64) *mat.Dense {
	d := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d.Set(i, j, m[i][j])
		}
	}
	return d
}

func symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			avg := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}
