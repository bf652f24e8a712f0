// Package rotation implements the SO(3) Lie group and algebra operations the
// error-state filter treats orientation with: exponential and logarithmic
// maps between axis-angle vectors and rotation matrices, the skew-symmetric
// "hat" operator, and group composition. Orientation is never touched as
// Euler angles or additive quaternion components anywhere above this
// package; every update goes through Exp/Log so the manifold stays valid.
package rotation

import "math"

// SO3 is a rotation matrix. It is kept as a plain 3x3 array rather than a
// gonum/mat.Dense: rotations are composed once per IMU sample, and the
// fixed-size form avoids an allocation on that path. The 18x18 covariance
// and gain matrices in package eskf, which are only touched once per
// predict/update call, use gonum/mat instead.
type SO3 struct {
	m [3][3]float64
}

// Identity returns the identity rotation.
func Identity() SO3 {
	return SO3{m: [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}}
}

// FromMatrix builds an SO3 from a row-major 3x3 array without normalizing
// it. Callers that construct a rotation from external data (a heading
// angle, a stored quaternion) are responsible for orthonormality.
func FromMatrix(m [3][3]float64) SO3 { return SO3{m: m} }

// Matrix returns the underlying row-major 3x3 array.
func (r SO3) Matrix() [3][3]float64 { return r.m }

// Hat maps a 3-vector to its skew-symmetric cross-product matrix, so that
// Hat(w) times v equals w cross v.
func Hat(w [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -w[2], w[1]},
		{w[2], 0, -w[0]},
		{-w[1], w[0], 0},
	}
}

// Vee is the inverse of Hat: it extracts the axis vector from a
// skew-symmetric matrix.
func Vee(m [3][3]float64) [3]float64 {
	return [3]float64{m[2][1], m[0][2], m[1][0]}
}

const smallAngle = 1e-8

// Exp is the SO(3) exponential map (Rodrigues' formula): it turns an
// axis-angle rotation vector into a rotation matrix. Exp of the zero vector
// is the identity exactly, and near zero it falls back to the second-order
// Taylor expansion of the Rodrigues coefficients so the map stays smooth and
// well-conditioned instead of dividing by a vanishing angle.
func Exp(w [3]float64) SO3 {
	theta2 := w[0]*w[0] + w[1]*w[1] + w[2]*w[2]
	theta := math.Sqrt(theta2)
	k := Hat(w)
	k2 := matMul3(k, k)

	var a, b float64 // coefficients on K and K^2
	if theta < smallAngle {
		a = 1 - theta2/6
		b = 0.5 - theta2/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / theta2
	}

	var m [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			id := 0.0
			if i == j {
				id = 1
			}
			m[i][j] = id + a*k[i][j] + b*k2[i][j]
		}
	}
	return SO3{m: m}
}

// Log is the inverse of Exp: it recovers the axis-angle rotation vector for
// a rotation matrix. Near the identity it uses the same small-angle
// expansion Exp does, keeping Log(Exp(w)) == w to numerical precision for
// every w with norm below pi, including zero.
func Log(r SO3) [3]float64 {
	m := r.m
	trace := m[0][0] + m[1][1] + m[2][2]
	cosTheta := (trace - 1) / 2
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	axisTimesSin := [3]float64{
		m[2][1] - m[1][2],
		m[0][2] - m[2][0],
		m[1][0] - m[0][1],
	}

	if theta < smallAngle {
		// sin(theta) ~= theta - theta^3/6, so 1/(2 sin theta) ~= 1/(2 theta) * (1 + theta^2/6)
		scale := 0.5 * (1 + theta*theta/6)
		return [3]float64{axisTimesSin[0] * scale, axisTimesSin[1] * scale, axisTimesSin[2] * scale}
	}
	scale := theta / (2 * math.Sin(theta))
	return [3]float64{axisTimesSin[0] * scale, axisTimesSin[1] * scale, axisTimesSin[2] * scale}
}

// Mul composes two rotations, r * o.
func (r SO3) Mul(o SO3) SO3 {
	return SO3{m: matMul3(r.m, o.m)}
}

// Transpose returns the transpose of r, which equals its inverse since r is
// orthonormal.
func (r SO3) Transpose() SO3 {
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = r.m[j][i]
		}
	}
	return SO3{m: t}
}

// Inverse is an alias for Transpose, spelled out at call sites where the
// intent is "undo this rotation" rather than "transpose this matrix".
func (r SO3) Inverse() SO3 { return r.Transpose() }

// Apply rotates a vector by r.
func (r SO3) Apply(v [3]float64) [3]float64 {
	return [3]float64{
		r.m[0][0]*v[0] + r.m[0][1]*v[1] + r.m[0][2]*v[2],
		r.m[1][0]*v[0] + r.m[1][1]*v[1] + r.m[1][2]*v[2],
		r.m[2][0]*v[0] + r.m[2][1]*v[1] + r.m[2][2]*v[2],
	}
}

// Quaternion returns the unit quaternion (w, x, y, z) equivalent to r, used
// only for reporting the orientation in state dumps.
func (r SO3) Quaternion() (w, x, y, z float64) {
	m := r.m
	trace := m[0][0] + m[1][1] + m[2][2]
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		w = 0.25 / s
		x = (m[2][1] - m[1][2]) * s
		y = (m[0][2] - m[2][0]) * s
		z = (m[1][0] - m[0][1]) * s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2.0 * math.Sqrt(1.0+m[0][0]-m[1][1]-m[2][2])
		w = (m[2][1] - m[1][2]) / s
		x = 0.25 * s
		y = (m[0][1] + m[1][0]) / s
		z = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := 2.0 * math.Sqrt(1.0+m[1][1]-m[0][0]-m[2][2])
		w = (m[0][2] - m[2][0]) / s
		x = (m[0][1] + m[1][0]) / s
		y = 0.25 * s
		z = (m[1][2] + m[2][1]) / s
	default:
		s := 2.0 * math.Sqrt(1.0+m[2][2]-m[0][0]-m[1][1])
		w = (m[1][0] - m[0][1]) / s
		x = (m[0][2] + m[2][0]) / s
		y = (m[1][2] + m[2][1]) / s
		z = 0.25 * s
	}
	return
}

// FromQuaternion builds an SO3 from a unit quaternion (w, x, y, z), the
// inverse of Quaternion - used when replaying a recorded session that
// stored orientation as a quaternion rather than a rotation matrix.
func FromQuaternion(w, x, y, z float64) SO3 {
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n > 0 {
		w, x, y, z = w/n, x/n, y/n, z/n
	}
	return SO3{m: [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}}
}

// FromYawDeg builds a rotation representing a pure heading (yaw about the
// local-frame Z axis), the form GNSS course-over-ground arrives in.
func FromYawDeg(yawDeg float64) SO3 {
	yaw := yawDeg * math.Pi / 180.0
	c, s := math.Cos(yaw), math.Sin(yaw)
	return SO3{m: [3][3]float64{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}}
}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var c [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			c[i][j] = sum
		}
	}
	return c
}
