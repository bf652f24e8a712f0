package eskf

// Options holds every tunable the filter needs: process noise, GNSS
// observation noise, phone installation angles and the two time-alignment
// knobs. Values default to the same operating point the original ground
// vehicle runs were tuned against; a config file loaded via package config
// overrides any subset of them.
type Options struct {
	ImuDTNominal float64 // nominal IMU sample period, seconds

	GyroVar      float64 // gyroscope measurement noise, (rad/s)^2
	AcceVar      float64 // accelerometer measurement noise, (m/s^2)^2
	BiasGyroVar  float64 // gyro bias random-walk variance
	BiasAcceVar  float64 // accel bias random-walk variance

	GNSSPosNoise    float64 // GNSS horizontal position noise std, meters
	GNSSHeightNoise float64 // GNSS vertical position noise std, meters; the GNSS updates do not use it (they apply GNSSPosNoise to all three axes)
	GNSSAngNoise    float64 // GNSS heading noise std, degrees

	PhoneRollInstallDeg    float64
	PhonePitchInstallDeg   float64
	PhoneHeadingInstallDeg float64

	EnableTimeCompensation bool
	FixedTimeDelaySec      float64

	UpdateBiasGyro bool
	UpdateBiasAcce bool
}

// DefaultOptions returns the filter's stock tuning.
func DefaultOptions() Options {
	return Options{
		ImuDTNominal: 0.04,

		GyroVar:     1e-5,
		AcceVar:     1e-2,
		BiasGyroVar: 1e-6,
		BiasAcceVar: 1e-4,

		GNSSPosNoise:    5.0,
		GNSSHeightNoise: 1.0,
		GNSSAngNoise:    1.0,

		PhoneRollInstallDeg:    0,
		PhonePitchInstallDeg:   0,
		PhoneHeadingInstallDeg: 0,

		EnableTimeCompensation: false,
		FixedTimeDelaySec:      0.2,

		UpdateBiasGyro: true,
		UpdateBiasAcce: true,
	}
}
