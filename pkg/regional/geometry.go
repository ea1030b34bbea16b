package regional

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// asMultiPolygon normalizes a polygonal geometry to a MultiPolygon. It
// returns ErrInvalidGeometry for anything that is not a polygon or
// multipolygon.
func asMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t, nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY).SetSRID(t.SRID())
		if err := mp.Push(clonePolygon(t)); err != nil {
			return nil, eris.Wrap(ErrInvalidGeometry, err.Error())
		}
		return mp, nil
	case nil:
		return nil, eris.Wrap(ErrInvalidGeometry, "nil geometry")
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "%T is not polygonal", g)
	}
}

// appendPolygons adds every polygon of src to dst. Geometries that share a
// region identifier are consolidated this way; boundary distance and
// containment over the collected parts match the geometric union for
// non-overlapping inputs.
func appendPolygons(dst, src *geom.MultiPolygon) error {
	for i := 0; i < src.NumPolygons(); i++ {
		if err := dst.Push(clonePolygon(src.Polygon(i))); err != nil {
			return eris.Wrap(ErrInvalidGeometry, err.Error())
		}
	}
	return nil
}

// clonePolygon deep-copies a polygon so consolidated regions never alias
// caller-owned coordinate storage.
func clonePolygon(p *geom.Polygon) *geom.Polygon {
	out := geom.NewPolygon(geom.XY)
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		flat := append([]float64(nil), ring.FlatCoords()...)
		// Push only fails for layout mismatches, which cannot happen here.
		_ = out.Push(geom.NewLinearRingFlat(geom.XY, flat))
	}
	return out
}

// containsPoint reports whether c lies inside mp, honoring holes: inside the
// exterior ring of some polygon and outside all of that polygon's holes.
func containsPoint(mp *geom.MultiPolygon, c geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(geom.XY, c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for j := 1; j < p.NumLinearRings(); j++ {
			if xy.IsPointInRing(geom.XY, c, p.LinearRing(j).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// boundaryDistance returns the distance from c to the boundary of mp in
// coordinate units: 0 when the point is inside or on the boundary, otherwise
// the minimum distance over every ring of every polygon.
func boundaryDistance(mp *geom.MultiPolygon, c geom.Coord) float64 {
	if containsPoint(mp, c) {
		return 0
	}
	min := math.Inf(1)
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		for j := 0; j < p.NumLinearRings(); j++ {
			if d := ringDistance(c, p.LinearRing(j)); d < min {
				min = d
			}
		}
	}
	return min
}

// ringDistance is the distance from c to a linear ring, including the
// closing segment when the ring does not repeat its first coordinate.
func ringDistance(c geom.Coord, ring *geom.LinearRing) float64 {
	flat := ring.FlatCoords()
	if len(flat) < 4 {
		return math.Inf(1)
	}
	d := xy.DistanceFromPointToLineString(geom.XY, c, flat)
	n := len(flat)
	if flat[0] != flat[n-2] || flat[1] != flat[n-1] {
		first := geom.Coord{flat[0], flat[1]}
		last := geom.Coord{flat[n-2], flat[n-1]}
		if cd := xy.DistanceFromPointToLine(c, last, first); cd < d {
			d = cd
		}
	}
	return d
}

// inExpandedBounds is the cheap candidate test used for cutoff pruning: true
// when c falls inside the geometry's bounding box expanded outward by radius
// in coordinate units.
func inExpandedBounds(b *geom.Bounds, c geom.Coord, radius float64) bool {
	return c[0] >= b.Min(0)-radius && c[0] <= b.Max(0)+radius &&
		c[1] >= b.Min(1)-radius && c[1] <= b.Max(1)+radius
}
