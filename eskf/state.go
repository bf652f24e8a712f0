package eskf

import (
	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
	"github.com/cjjhhhhh/gnss-ins-eskf/rotation"
)

// NavState is the nominal navigation state the filter reports: time, pose,
// velocity and the slowly-varying calibration terms (IMU biases and the
// local gravity vector) the error state corrects. Orientation is always an
// SO(3) element updated through Exp composition - it is never built or
// modified by adding to Euler angles or quaternion components directly.
type NavState struct {
	TimeSec float64

	P navtypes.Vec3 // position, local planar frame, meters
	V navtypes.Vec3 // velocity, local planar frame, m/s
	R rotation.SO3  // orientation, body-to-local

	BiasGyro navtypes.Vec3 // gyroscope bias, rad/s
	BiasAcce navtypes.Vec3 // accelerometer bias, m/s^2
	Gravity  navtypes.Vec3 // local gravity vector, m/s^2
}

// DefaultGravity is the magnitude used to seed NavState.Gravity before the
// first predict; it is refined online through the error state's gravity
// block.
const DefaultGravity = 9.81
