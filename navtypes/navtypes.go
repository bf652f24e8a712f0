// Package navtypes defines the wire-level sensor and fix types shared by
// every stage of the navigation pipeline: raw IMU samples, RTK-GNSS fixes,
// and the small vector/pose helpers built on top of them.
package navtypes

import "fmt"

// Vec3 is a plain 3-vector used for accelerations, angular rates, biases
// and positions. It intentionally does not wrap gonum/mat.Dense: on the
// per-sample hot path the fixed-size array form avoids allocation.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

func (v Vec3) String() string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v.X, v.Y, v.Z)
}

// Array returns the vector as a plain [3]float64, the shape most of the
// rotation and eskf math operates on.
func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func VecFromArray(a [3]float64) Vec3 { return Vec3{a[0], a[1], a[2]} }

// IMU is one accelerometer+gyroscope sample. Acc is specific force in
// m/s^2, Gyro is angular rate in rad/s, both expressed in the phone/device
// frame before phone-install compensation is applied.
type IMU struct {
	TimeSec float64
	Acc     Vec3
	Gyro    Vec3
}

// FixStatus reports whether a GNSS receiver held an RTK-fixed solution.
type FixStatus int

const (
	FixUnknown FixStatus = iota
	FixInvalid
	FixSingle
	FixRTKFloat
	FixRTKFixed
)

// GNSS is one positioning epoch: WGS84 latitude/longitude/altitude plus an
// antenna-derived course-over-ground heading. HeadingValid distinguishes a
// receiver that could not resolve heading (e.g. stationary, single antenna)
// from one that reports zero degrees legitimately.
type GNSS struct {
	TimeSec      float64
	LatitudeDeg  float64
	LongitudeDeg float64
	AltitudeM    float64
	HeadingDeg   float64
	HeadingValid bool
	SpeedMS      float64
	Status       FixStatus
}

// Odom is a wheel-odometry sample. The core filter never consumes it; it
// exists only so the ingestion surface matches the full sensor set.
type Odom struct {
	TimeSec  float64
	SpeedMS  float64
	YawRateR float64
}

// Pose3 is a rigid 2.5D pose in the local planar frame: a position and a
// yaw-only heading.
type Pose3 struct {
	Position   Vec3
	HeadingDeg float64
}
