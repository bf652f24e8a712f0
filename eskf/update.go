package eskf

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

// dx is the 18-vector error state, held as a local array rather than a
// field: apply-and-reset always zeroes it at the end of every update, so
// nothing is gained by keeping it alive between calls.
type dx = [errDim]float64

// ObserveSE3 performs a 6-DoF pose update (position + heading-only
// attitude). The rotation innovation's roll and pitch components are
// forced to zero before the gain is applied, since a GNSS antenna pair
// only ever resolves course-over-ground (heading), never full attitude.
func (f *Filter) ObserveSE3(posePos navtypes.Vec3, poseR rotation.SO3, transNoise, angNoiseDeg float64) {
	n := f.nominal

	innovTrans := posePos.Sub(n.P)
	rotErr := rotation.Log(n.R.Transpose().Mul(poseR))
	rotErr[0] = 0 // roll, not observable from GNSS heading
	rotErr[1] = 0 // pitch, not observable from GNSS heading

	y := mat.NewVecDense(6, []float64{
		innovTrans.X, innovTrans.Y, innovTrans.Z,
		rotErr[0], rotErr[1], rotErr[2],
	})

	H := mat.NewDense(6, errDim, nil)
	H.Set(0, idxDP+0, 1)
	H.Set(1, idxDP+1, 1)
	H.Set(2, idxDP+2, 1)
	H.Set(3, idxDTheta+0, 1)
	H.Set(4, idxDTheta+1, 1)
	H.Set(5, idxDTheta+2, 1)

	angNoiseRad := angNoiseDeg * math.Pi / 180
	R := mat.NewDense(6, 6, nil)
	R.Set(0, 0, transNoise*transNoise)
	R.Set(1, 1, transNoise*transNoise)
	R.Set(2, 2, transNoise*transNoise)
	R.Set(3, 3, angNoiseRad*angNoiseRad)
	R.Set(4, 4, angNoiseRad*angNoiseRad)
	R.Set(5, 5, angNoiseRad*angNoiseRad)

	dxv := f.kalmanUpdate(H, R, y)
	f.applyAndReset(dxv)
}

// ObservePositionOnly performs a 3-DoF position-only update, used while the
// vehicle is inside a detected turn segment where GNSS heading is
// considered unreliable.
func (f *Filter) ObservePositionOnly(posePos navtypes.Vec3, transNoise float64) {
	n := f.nominal
	innov := posePos.Sub(n.P)
	y := mat.NewVecDense(3, []float64{innov.X, innov.Y, innov.Z})

	H := mat.NewDense(3, errDim, nil)
	H.Set(0, idxDP+0, 1)
	H.Set(1, idxDP+1, 1)
	H.Set(2, idxDP+2, 1)

	R := mat.NewDense(3, 3, nil)
	R.Set(0, 0, transNoise*transNoise)
	R.Set(1, 1, transNoise*transNoise)
	R.Set(2, 2, transNoise*transNoise)

	dxv := f.kalmanUpdate(H, R, y)
	f.applyAndReset(dxv)
}

// ObserveGps is the entry point for a GNSS fix with a valid heading: a
// pending first-GNSS flag bypasses the Kalman update entirely (see
// initializeFromFirstGNSS), otherwise it runs the general SE3 update using
// the filter's configured GNSS noise. After initialization, a fix whose
// heading is not valid is dropped with a warning.
func (f *Filter) ObserveGps(pos navtypes.Vec3, headingDeg float64, headingValid bool) {
	if f.firstGNSSPending {
		f.initializeFromFirstGNSS(pos, headingDeg, headingValid)
		return
	}
	if !headingValid {
		log.Printf("eskf: WARNING dropping GNSS fix without a valid heading")
		return
	}
	poseR := rotation.FromYawDeg(headingDeg)
	f.ObserveSE3(pos, poseR, f.opts.GNSSPosNoise, f.opts.GNSSAngNoise)
	f.recordResidual(pos, headingDeg)
}

// ObservePositionOnlyGNSS is the turn-segment counterpart of ObserveGps: it
// still honors first-GNSS initialization, then runs a position-only update.
func (f *Filter) ObservePositionOnlyGNSS(pos navtypes.Vec3, headingDeg float64, headingValid bool) {
	if f.firstGNSSPending {
		f.initializeFromFirstGNSS(pos, headingDeg, headingValid)
		return
	}
	f.ObservePositionOnly(pos, f.opts.GNSSPosNoise)
	f.recordResidual(pos, headingDeg)
}

// initializeFromFirstGNSS sets position and orientation directly from the
// first GNSS fix instead of running a Kalman update, since the covariance
// has not yet been informed by any measurement. It does not change the
// filter's clock (NavState.TimeSec). When the
// heading is invalid, orientation is left at identity and only position is
// taken from the fix - using an invalid heading to seed R would be worse
// than assuming no rotation at all.
func (f *Filter) initializeFromFirstGNSS(pos navtypes.Vec3, headingDeg float64, headingValid bool) {
	f.nominal.P = pos
	if headingValid {
		f.nominal.R = rotation.FromYawDeg(headingDeg)
	} else {
		f.nominal.R = rotation.Identity()
	}
	f.firstGNSSPending = false
}

// kalmanUpdate runs the general measurement update K = P H^T (H P H^T + R)^-1,
// returning the resulting error-state correction. It does not itself apply
// the correction or reset the state - see applyAndReset.
func (f *Filter) kalmanUpdate(H, R *mat.Dense, y *mat.VecDense) dx {
	var HP mat.Dense
	HP.Mul(H, f.cov)
	var HPHt mat.Dense
	HPHt.Mul(&HP, H.T())

	var S mat.Dense
	S.Add(&HPHt, R)

	var Sinv mat.Dense
	if err := Sinv.Inverse(&S); err != nil {
		// Singular innovation covariance: fall back to a pseudo-inverse via
		// SVD rather than letting the update diverge outright.
		Sinv = *pseudoInverse(&S)
	}

	var PHt mat.Dense
	PHt.Mul(f.cov, H.T())
	var K mat.Dense
	K.Mul(&PHt, &Sinv)

	var dxVec mat.VecDense
	dxVec.MulVec(&K, y)

	var out dx
	for i := 0; i < errDim; i++ {
		out[i] = dxVec.AtVec(i)
	}

	// P <- (I - K H) P
	var KH mat.Dense
	KH.Mul(&K, H)
	ikh := mat.NewDense(errDim, errDim, nil)
	for i := 0; i < errDim; i++ {
		ikh.Set(i, i, 1)
	}
	ikh.Sub(ikh, &KH)
	var newCov mat.Dense
	newCov.Mul(ikh, f.cov)
	f.cov = mat.DenseCopyOf(&newCov)
	symmetrize(f.cov)

	return out
}

// applyAndReset folds the error-state correction into the nominal state
// (p, v additively; R through right composition with Exp; each bias
// additively, gated by its UpdateBiasGyro/UpdateBiasAcce flag; gravity
// additively, always), projects the covariance to account for the rotation
// reset, and zeroes the error state.
func (f *Filter) applyAndReset(d dx) {
	n := f.nominal

	n.P = n.P.Add(navtypes.Vec3{X: d[idxDP], Y: d[idxDP+1], Z: d[idxDP+2]})
	n.V = n.V.Add(navtypes.Vec3{X: d[idxDV], Y: d[idxDV+1], Z: d[idxDV+2]})

	theta := [3]float64{d[idxDTheta], d[idxDTheta+1], d[idxDTheta+2]}
	n.R = n.R.Mul(rotation.Exp(theta))

	if f.opts.UpdateBiasGyro {
		n.BiasGyro = n.BiasGyro.Add(navtypes.Vec3{X: d[idxDBg], Y: d[idxDBg+1], Z: d[idxDBg+2]})
	}
	if f.opts.UpdateBiasAcce {
		n.BiasAcce = n.BiasAcce.Add(navtypes.Vec3{X: d[idxDBa], Y: d[idxDBa+1], Z: d[idxDBa+2]})
	}
	n.Gravity = n.Gravity.Add(navtypes.Vec3{X: d[idxDG], Y: d[idxDG+1], Z: d[idxDG+2]})

	f.nominal = n

	f.projectCov(theta)
}

// projectCov applies J P J^T where J is identity except for the dtheta
// block, which becomes I - 0.5*hat(dtheta): re-linearizing the covariance
// around the rotation reset that Exp(dtheta) just folded into R.
func (f *Filter) projectCov(dtheta [3]float64) {
	J := mat.NewDense(errDim, errDim, nil)
	for i := 0; i < errDim; i++ {
		J.Set(i, i, 1)
	}
	half := rotation.Hat(dtheta)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -0.5 * half[i][j]
			if i == j {
				v += 1
			}
			J.Set(idxDTheta+i, idxDTheta+j, v)
		}
	}

	var JP mat.Dense
	JP.Mul(J, f.cov)
	var JPJt mat.Dense
	JPJt.Mul(&JP, J.T())
	f.cov = mat.DenseCopyOf(&JPJt)
	symmetrize(f.cov)
}

// recordResidual computes and stashes the diagnostic lateral residual and
// raw innovation for the most recent GNSS fix, for package report to dump;
// the filter itself never reads these values back. The lateral residual is
// the horizontal innovation's component across the current heading,
// positive to the left.
func (f *Filter) recordResidual(pos navtypes.Vec3, headingDeg float64) {
	innov := pos.Sub(f.nominal.P)
	heading := f.CurrentHeading()
	f.lastResidual = [3]float64{innov.X, innov.Y, innov.Z}
	f.lastLateralResidual = -innov.X*math.Sin(heading) + innov.Y*math.Cos(heading)
	f.lastSpeed = math.Hypot(f.nominal.V.X, f.nominal.V.Y)
}

// ResidualSnapshot returns the components behind the last recorded
// residual, for package report's residual dump.
func (f *Filter) ResidualSnapshot() (lateral float64, heading float64, speed float64, raw [3]float64, norm float64) {
	raw = f.lastResidual
	norm = math.Sqrt(raw[0]*raw[0] + raw[1]*raw[1] + raw[2]*raw[2])
	return f.lastLateralResidual, f.CurrentHeading(), f.lastSpeed, raw, norm
}
