// Package config loads filter tuning from an XML configuration file using a
// manual token-loop decoder, the same style the retrieval corpus's project
// configuration parser uses rather than struct-tag unmarshalling - no
// config library (viper or similar) appears anywhere in the example
// corpus, so this stays on encoding/xml.
package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cjjhhhhh/gnss-ins-eskf/eskf"
)

// Load reads an Options XML document of the shape:
//
//	<eskf_config>
//	  <imu_dt_nominal>0.04</imu_dt_nominal>
//	  <gyro_var>1e-5</gyro_var>
//	  ...
//	</eskf_config>
//
// Unrecognized elements are ignored; missing elements leave the
// corresponding field at its DefaultOptions() value.
func Load(path string) (eskf.Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return eskf.Options{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an Options XML document from r.
func Parse(r io.Reader) (eskf.Options, error) {
	opts := eskf.DefaultOptions()
	dec := xml.NewDecoder(r)

	var currentTag string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return opts, fmt.Errorf("config: decode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			currentTag = t.Name.Local
		case xml.CharData:
			applyField(&opts, currentTag, string(t))
		case xml.EndElement:
			currentTag = ""
		}
	}
	return opts, nil
}

func applyField(opts *eskf.Options, tag, value string) {
	switch tag {
	case "imu_dt_nominal":
		opts.ImuDTNominal = parseFloatOrZero(value, opts.ImuDTNominal)
	case "gyro_var":
		opts.GyroVar = parseFloatOrZero(value, opts.GyroVar)
	case "acce_var":
		opts.AcceVar = parseFloatOrZero(value, opts.AcceVar)
	case "bias_gyro_var":
		opts.BiasGyroVar = parseFloatOrZero(value, opts.BiasGyroVar)
	case "bias_acce_var":
		opts.BiasAcceVar = parseFloatOrZero(value, opts.BiasAcceVar)
	case "gnss_pos_noise":
		opts.GNSSPosNoise = parseFloatOrZero(value, opts.GNSSPosNoise)
	case "gnss_height_noise":
		opts.GNSSHeightNoise = parseFloatOrZero(value, opts.GNSSHeightNoise)
	case "gnss_ang_noise":
		opts.GNSSAngNoise = parseFloatOrZero(value, opts.GNSSAngNoise)
	case "phone_roll_install":
		opts.PhoneRollInstallDeg = parseFloatOrZero(value, opts.PhoneRollInstallDeg)
	case "phone_pitch_install":
		opts.PhonePitchInstallDeg = parseFloatOrZero(value, opts.PhonePitchInstallDeg)
	case "phone_heading_install":
		opts.PhoneHeadingInstallDeg = parseFloatOrZero(value, opts.PhoneHeadingInstallDeg)
	case "enable_time_compensation":
		opts.EnableTimeCompensation = value == "true" || value == "1"
	case "fixed_time_delay":
		opts.FixedTimeDelaySec = parseFloatOrZero(value, opts.FixedTimeDelaySec)
	case "update_bias_gyro":
		opts.UpdateBiasGyro = value == "true" || value == "1"
	case "update_bias_acce":
		opts.UpdateBiasAcce = value == "true" || value == "1"
	}
}

func parseFloatOrZero(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// Write serializes opts back out as the same XML shape Load reads, so a
// config file can be round-tripped through a running session for
// inspection or replay.
func Write(path string, opts eskf.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(f, "<eskf_config>")
	fmt.Fprintf(f, "  <imu_dt_nominal>%g</imu_dt_nominal>\n", opts.ImuDTNominal)
	fmt.Fprintf(f, "  <gyro_var>%g</gyro_var>\n", opts.GyroVar)
	fmt.Fprintf(f, "  <acce_var>%g</acce_var>\n", opts.AcceVar)
	fmt.Fprintf(f, "  <bias_gyro_var>%g</bias_gyro_var>\n", opts.BiasGyroVar)
	fmt.Fprintf(f, "  <bias_acce_var>%g</bias_acce_var>\n", opts.BiasAcceVar)
	fmt.Fprintf(f, "  <gnss_pos_noise>%g</gnss_pos_noise>\n", opts.GNSSPosNoise)
	fmt.Fprintf(f, "  <gnss_height_noise>%g</gnss_height_noise>\n", opts.GNSSHeightNoise)
	fmt.Fprintf(f, "  <gnss_ang_noise>%g</gnss_ang_noise>\n", opts.GNSSAngNoise)
	fmt.Fprintf(f, "  <phone_roll_install>%g</phone_roll_install>\n", opts.PhoneRollInstallDeg)
	fmt.Fprintf(f, "  <phone_pitch_install>%g</phone_pitch_install>\n", opts.PhonePitchInstallDeg)
	fmt.Fprintf(f, "  <phone_heading_install>%g</phone_heading_install>\n", opts.PhoneHeadingInstallDeg)
	fmt.Fprintf(f, "  <enable_time_compensation>%t</enable_time_compensation>\n", opts.EnableTimeCompensation)
	fmt.Fprintf(f, "  <fixed_time_delay>%g</fixed_time_delay>\n", opts.FixedTimeDelaySec)
	fmt.Fprintf(f, "  <update_bias_gyro>%t</update_bias_gyro>\n", opts.UpdateBiasGyro)
	fmt.Fprintf(f, "  <update_bias_acce>%t</update_bias_acce>\n", opts.UpdateBiasAcce)
	fmt.Fprintln(f, "</eskf_config>")
	return nil
}
