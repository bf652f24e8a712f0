package eskf

import (
	"log"

	"gonum.org/v1/gonum/mat"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

// Predict propagates the nominal state and error-state covariance to
// timestampSec using one IMU sample (accel in m/s^2, gyro in rad/s, both
// already in the body frame - phone-install compensation must be applied
// by the caller before this is invoked).
//
// A negative dt is silently skipped (a reordered/duplicate sample). A dt
// larger than 5x the nominal IMU period advances the filter's clock
// without integrating, since blindly integrating over a multi-period gap
// would inject an unbounded position/velocity error. Every other case
// performs the full nominal-state Euler-forward integration and error
// covariance propagation.
func (f *Filter) Predict(timestampSec float64, accel, gyro navtypes.Vec3) bool {
	if !f.hasInitial {
		log.Panicf("eskf: Predict called before SetInitial")
	}

	t := timestampSec
	if f.opts.EnableTimeCompensation {
		t += f.opts.FixedTimeDelaySec
	}

	dt := t - f.nominal.TimeSec
	if dt < 0 {
		log.Printf("eskf: WARNING dropping out-of-order IMU sample, dt=%.6f", dt)
		return false
	}
	if dt > 5*f.opts.ImuDTNominal {
		log.Printf("eskf: WARNING IMU gap %.3fs exceeds 5x nominal period, advancing time without integrating", dt)
		f.nominal.TimeSec = t
		return true
	}

	f.propagateCovariance(dt, accel, gyro)
	f.integrate(dt, accel, gyro)

	f.nominal.TimeSec = t
	return true
}

func (f *Filter) integrate(dt float64, accel, gyro navtypes.Vec3) {
	n := f.nominal

	accUnbiased := accel.Sub(n.BiasAcce)
	gyroUnbiased := gyro.Sub(n.BiasGyro)

	accWorldArr := n.R.Apply(accUnbiased.Array())
	accWorld := navtypes.VecFromArray(accWorldArr).Add(n.Gravity)

	newP := n.P.Add(n.V.Scale(dt)).Add(accWorld.Scale(0.5 * dt * dt))
	newV := n.V.Add(accWorld.Scale(dt))
	newR := n.R.Mul(rotation.Exp([3]float64{
		gyroUnbiased.X * dt, gyroUnbiased.Y * dt, gyroUnbiased.Z * dt,
	}))

	f.nominal.P = newP
	f.nominal.V = newV
	f.nominal.R = newR
}

// propagateCovariance builds the 18x18 state transition F and propagates
// P <- F P F^T + Q, using the nominal state *before* integrate updates it -
// Predict calls it ahead of integrate() so R and the biases below are the
// ones the sample is integrated from.
//
// Block layout:
//
//	F[dp,dv]     = I*dt
//	F[dv,dtheta] = -R * hat(acc - ba) * dt
//	F[dv,dba]    = -R * dt
//	F[dv,dg]     = I*dt
//	F[dtheta,dtheta] = Exp(-(gyro - bg) * dt)
//	F[dtheta,dbg]    = -I*dt
//
// every other off-diagonal block is zero, and the diagonal itself is
// identity everywhere F above doesn't already set it.
func (f *Filter) propagateCovariance(dt float64, accel, gyro navtypes.Vec3) {
	// Linearized at the pre-integration nominal state.
	n := f.nominal
	accUnbiased := accel.Sub(n.BiasAcce)
	gyroUnb := gyro.Sub(n.BiasGyro)

	Rmat := matFromArr3x3(n.R.Matrix())
	negRHatDt := mat.NewDense(3, 3, nil)
	negRHatDt.Mul(Rmat, matFromArr3x3(rotation.Hat(accUnbiased.Array())))
	negRHatDt.Scale(-dt, negRHatDt)

	F := mat.NewDense(errDim, errDim, nil)
	for i := 0; i < errDim; i++ {
		F.Set(i, i, 1)
	}
	setBlock(F, idxDP, idxDV, scaledIdentity3(dt))
	setBlock(F, idxDV, idxDTheta, negRHatDt)

	negRDt := mat.NewDense(3, 3, nil)
	negRDt.Scale(-dt, Rmat)
	setBlock(F, idxDV, idxDBa, negRDt)
	setBlock(F, idxDV, idxDG, scaledIdentity3(dt))

	thetaStep := rotation.Exp([3]float64{-gyroUnb.X * dt, -gyroUnb.Y * dt, -gyroUnb.Z * dt})
	setBlock(F, idxDTheta, idxDTheta, matFromArr3x3(thetaStep.Matrix()))
	setBlock(F, idxDTheta, idxDBg, scaledIdentity3(-dt))

	var FP, FPFt mat.Dense
	FP.Mul(F, f.cov)
	FPFt.Mul(&FP, F.T())

	var newCov mat.Dense
	newCov.Add(&FPFt, f.q)
	f.cov = mat.DenseCopyOf(&newCov)
	symmetrize(f.cov)
}

func setBlock(dst *mat.Dense, rowOff, colOff int, block *mat.Dense) {
	r, c := block.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(rowOff+i, colOff+j, block.At(i, j))
		}
	}
}

func scaledIdentity3(k float64) *mat.Dense {
	d := mat.NewDense(3, 3, nil)
	d.Set(0, 0, k)
	d.Set(1, 1, k)
	d.Set(2, 2, k)
	return d
}
