package loader

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/mosaic/pkg/regional"
)

// Regions reads a polygon shapefile and normalizes it into a region set.
// idField selects the DBF column whose values identify regions; pass "" to
// assign ordinal identifiers in file order.
func Regions(path, idField string, srid int) (*regional.RegionSet, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer reader.Close() //nolint:errcheck

	fields := reader.Fields()
	decoder := charmap.ISO8859_1.NewDecoder()

	var records []regional.GeometryRecord
	for n := 0; reader.Next(); n++ {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			zap.L().Warn("skipping non-polygon shape",
				zap.String("component", "loader"),
				zap.Int("record", n),
			)
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			name := strings.TrimRight(f.String(), "\x00")
			raw := reader.Attribute(i)
			// DBF text is Latin-1 unless a codepage says otherwise.
			if decoded, derr := decoder.String(raw); derr == nil {
				raw = decoded
			}
			attrs[name] = strings.TrimSpace(raw)
		}

		records = append(records, regional.GeometryRecord{
			Attrs: attrs,
			Geom:  polygonToMultiPolygon(poly),
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: read shapefile %s", path)
	}

	set, err := regional.NormalizeRegions(records, idField)
	if err != nil {
		return nil, err
	}
	set.SRID = srid
	return set, nil
}

// polygonToMultiPolygon converts a shapefile polygon record. Shapefile parts
// are rings in a flat point array: clockwise rings are exteriors and
// counter-clockwise rings are holes of the preceding exterior.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	for part := 0; part < int(p.NumParts); part++ {
		start := int(p.Parts[part])
		end := len(p.Points)
		if part+1 < int(p.NumParts) {
			end = int(p.Parts[part+1])
		}

		flat := make([]float64, 0, (end-start)*2)
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			// Exterior ring; a malformed leading hole starts a
			// polygon rather than being dropped.
			if current != nil {
				_ = mp.Push(current)
			}
			current = geom.NewPolygon(geom.XY)
			_ = current.Push(ring)
		} else {
			_ = current.Push(ring)
		}
	}
	if current != nil {
		_ = mp.Push(current)
	}
	return mp
}

// signedArea is the shoelace sum over a flat XY ring; positive for
// counter-clockwise winding.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
