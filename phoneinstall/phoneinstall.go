// Package phoneinstall compensates for a fixed mounting rotation between
// the IMU/phone frame and the vehicle body frame, so that accelerometer and
// gyroscope samples reach the filter already expressed in the body frame.
package phoneinstall

import (
	"math"

	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

// Compensator holds the fixed body<-phone rotation derived from the
// installation's roll/pitch/heading Euler angles.
type Compensator struct {
	cbn [3][3]float64 // body <- phone
}

// New builds a Compensator from the phone's installation Euler angles, in
// degrees: roll and pitch about the phone's own axes, heading about the
// vertical. The composition order (roll, then pitch, then heading) and the
// final transpose mirror how the vehicle-to-phone rotation is conventionally
// built up one axis at a time and then inverted to go the other way.
func New(rollDeg, pitchDeg, headingDeg float64) *Compensator {
	roll := rollDeg * math.Pi / 180
	pitch := pitchDeg * math.Pi / 180
	heading := headingDeg * math.Pi / 180

	rx := rotX(roll)
	ry := rotY(pitch)
	rz := rotZ(heading)

	// Cnb = Rx(roll) * Ry(pitch) * Rz(heading); Cbn is its transpose.
	cnb := matMul(matMul(rx, ry), rz)
	cbn := transpose(cnb)
	return &Compensator{cbn: cbn}
}

// Identity returns a no-op compensator, for installs with no mounting
// offset.
func Identity() *Compensator {
	return &Compensator{cbn: rotation.Identity().Matrix()}
}

// Apply rotates a phone-frame vector (accelerometer or gyroscope sample)
// into the body frame.
func (c *Compensator) Apply(v [3]float64) [3]float64 {
	m := c.cbn
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

func rotX(a float64) [3][3]float64 {
	c, s := math.Cos(a), math.Sin(a)
	return [3][3]float64{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

func rotY(a float64) [3][3]float64 {
	c, s := math.Cos(a), math.Sin(a)
	return [3][3]float64{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

func rotZ(a float64) [3][3]float64 {
	c, s := math.Cos(a), math.Sin(a)
	return [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			r[i][j] = sum
		}
	}
	return r
}

func transpose(m [3][3]float64) [3][3]float64 {
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}
