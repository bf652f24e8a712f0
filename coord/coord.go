// Package coord converts RTK-GNSS fixes from WGS84 geodetic coordinates
// into the local planar (east-north-up-ish tangent plane) frame the filter
// operates in, correcting for the antenna's lever arm offset from the
// vehicle/body reference point along the way.
//
// No geodesy library appears anywhere in the retrieval corpus (no UTM,
// proj4 or similar dependency was found in any example go.mod), so the
// projection below is a from-scratch equirectangular tangent-plane
// approximation centered on an origin fix - adequate over the few
// kilometers a single recording session covers, and the same scope the
// source system's own local-frame conversion targets.
package coord

import "math"

const earthRadiusM = 6378137.0 // WGS84 equatorial radius

// Converter projects WGS84 fixes onto a local tangent plane anchored at an
// origin latitude/longitude. The origin can be set explicitly, or is
// latched automatically from the first fix passed to Convert.
type Converter struct {
	AntennaOffsetX float64 // lever arm, body-frame X (forward), meters
	AntennaOffsetY float64 // lever arm, body-frame Y (left), meters

	originSet bool
	originLat float64
	originLon float64
	originAlt float64
}

// SetOrigin fixes the tangent-plane origin explicitly, including the
// vertical origin altM is subtracted against. Calling it again re-anchors
// the plane; Convert results before and after are not comparable.
func (c *Converter) SetOrigin(latDeg, lonDeg, altM float64) {
	c.originLat = latDeg
	c.originLon = lonDeg
	c.originAlt = altM
	c.originSet = true
}

// Result is a converted GNSS fix: the vehicle-frame pose after lever-arm
// correction, and whether the antenna heading backing it was valid.
type Result struct {
	X, Y, Z      float64
	HeadingDeg   float64
	HeadingValid bool
}

// Convert projects a WGS84 fix (latitude, longitude, altitude, heading) to
// the local tangent plane and removes the antenna lever arm, returning the
// pose of the vehicle reference point. It reports ok=false when the fix
// carries an out-of-range latitude/longitude, since no meaningful
// projection exists for that input.
func (c *Converter) Convert(latDeg, lonDeg, altM, headingDeg float64, headingValid bool) (Result, bool) {
	if math.Abs(latDeg) > 90 || math.Abs(lonDeg) > 180 || math.IsNaN(latDeg) || math.IsNaN(lonDeg) {
		return Result{}, false
	}
	if !c.originSet {
		c.SetOrigin(latDeg, lonDeg, altM)
	}

	latRad := latDeg * math.Pi / 180
	lonRad := lonDeg * math.Pi / 180
	originLatRad := c.originLat * math.Pi / 180
	originLonRad := c.originLon * math.Pi / 180

	x := earthRadiusM * math.Cos(originLatRad) * (lonRad - originLonRad) // east
	y := earthRadiusM * (latRad - originLatRad)                         // north

	// Remove the antenna's lever arm: the fix is the antenna's position,
	// offset from the body origin by (AntennaOffsetX, AntennaOffsetY) in
	// the body frame, which the GNSS heading orients.
	if headingValid && (c.AntennaOffsetX != 0 || c.AntennaOffsetY != 0) {
		headingRad := headingDeg * math.Pi / 180
		sinH, cosH := math.Sin(headingRad), math.Cos(headingRad)
		x -= cosH*c.AntennaOffsetX - sinH*c.AntennaOffsetY
		y -= sinH*c.AntennaOffsetX + cosH*c.AntennaOffsetY
	}

	return Result{X: x, Y: y, Z: altM - c.originAlt, HeadingDeg: headingDeg, HeadingValid: headingValid}, true
}

// ForceInvalidateHeading lets a caller (e.g. the turn detector, during a
// segment where GNSS course-over-ground is known to be unreliable) discard
// an otherwise-valid heading before the result reaches the filter.
func ForceInvalidateHeading(r Result) Result {
	r.HeadingValid = false
	r.HeadingDeg = 0
	return r
}
