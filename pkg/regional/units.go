package regional

import "math"

// kmPerDegreeEquator is the approximate length of one degree of arc at the
// equator. Geographic cutoffs and distances are scaled by the cosine of the
// most poleward observation latitude, which shrinks the km-per-degree factor
// toward the poles and therefore enlarges the degree radius used for
// pruning. The flat-earth approximation this rests on breaks down in the
// immediate vicinity of a pole; nearPole detects that case so the engine can
// abandon pruning entirely.
const kmPerDegreeEquator = 111.0

// geographicSRIDs holds the longitude/latitude reference systems this
// package recognizes as angular.
var geographicSRIDs = map[int]bool{
	4326: true, // WGS 84
	4269: true, // NAD 83
}

// isGeographic reports whether an SRID uses angular degrees.
func isGeographic(srid int) bool {
	return geographicSRIDs[srid]
}

// kmPerDegree returns the conversion factor at the given latitude.
func kmPerDegree(latDeg float64) float64 {
	return kmPerDegreeEquator * math.Cos(latDeg*math.Pi/180)
}

// mostPolewardLat returns the largest absolute latitude among the
// observations, in degrees. Zero observations yield 0.
func mostPolewardLat(obs *Observations) float64 {
	max := 0.0
	for _, c := range obs.Coords {
		if a := math.Abs(c[1]); a > max {
			max = a
		}
	}
	return max
}

// nearPole reports whether a degree radius drawn around the most poleward
// latitude would reach past ±90°.
func nearPole(polewardLat, radiusDeg float64) bool {
	return polewardLat+radiusDeg >= 90
}
