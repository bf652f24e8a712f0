// Package nmeasrc turns a stream of NMEA 0183 sentences into GNSS fixes,
// the ingestion path for receivers that speak NMEA directly rather than a
// vendor binary protocol. It accumulates RMC (position/speed/course), GGA
// (altitude) and HDT (precise dual-antenna heading) sentences into one
// combined fix per RMC, the same sentence-combining approach the serial
// GPS producer in the reference corpus uses.
package nmeasrc

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/cjjhhhhh/gnss-ins-eskf/navtypes"
)

// Decoder accumulates NMEA sentences into navtypes.GNSS fixes.
type Decoder struct {
	altitudeM    float64
	haveAltitude bool
	headingDeg   float64
	haveHeading  bool
}

// Feed parses one NMEA line. It returns a completed fix (ok=true) whenever
// the line is an RMC sentence with a valid fix; GGA and HDT lines update
// the decoder's running altitude/heading and return ok=false.
func (d *Decoder) Feed(line string) (navtypes.GNSS, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return navtypes.GNSS{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return navtypes.GNSS{}, false, err
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		d.altitudeM = m.Altitude
		d.haveAltitude = true
		return navtypes.GNSS{}, false, nil

	case nmea.TypeHDT:
		m := sentence.(nmea.HDT)
		d.headingDeg = m.Heading
		d.haveHeading = true
		return navtypes.GNSS{}, false, nil

	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != "A" {
			return navtypes.GNSS{}, false, nil
		}
		fix := navtypes.GNSS{
			TimeSec:      timeOfDaySeconds(m.Time),
			LatitudeDeg:  m.Latitude,
			LongitudeDeg: m.Longitude,
			SpeedMS:      m.Speed * 0.514444, // knots -> m/s
			Status:       navtypes.FixSingle,
		}
		if d.haveAltitude {
			fix.AltitudeM = d.altitudeM
		}
		if d.haveHeading {
			fix.HeadingDeg = d.headingDeg
			fix.HeadingValid = true
		} else {
			fix.HeadingDeg = m.Course
			fix.HeadingValid = m.Course != 0
		}
		return fix, true, nil

	default:
		return navtypes.GNSS{}, false, nil
	}
}

func timeOfDaySeconds(t nmea.Time) float64 {
	return float64(t.Hour)*3600 + float64(t.Minute)*60 + float64(t.Second) + float64(t.Millisecond)/1000
}
