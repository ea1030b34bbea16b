package regional

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// NormalizeRegions consolidates raw geometry records into one Region per
// unique identifier. idField names the attribute carrying the region
// identifier; when it is empty every record becomes its own region,
// identified by its 1-based row position. Records sharing an identifier have
// their geometries collected into one MultiPolygon, and first-seen
// identifier order is preserved.
//
// It fails with ErrInvalidGeometry when a record is not polygonal and with
// ErrMissingColumn when idField is named but absent from a record.
func NormalizeRegions(records []GeometryRecord, idField string) (*RegionSet, error) {
	if len(records) == 0 {
		return nil, eris.Wrap(ErrEmptyRegions, "no geometry records")
	}

	rs := &RegionSet{}
	index := make(map[string]int, len(records))

	for i, rec := range records {
		mp, err := asMultiPolygon(rec.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "record %d", i)
		}
		if i == 0 {
			rs.SRID = rec.Geom.SRID()
		}

		id, err := recordID(rec, i, idField)
		if err != nil {
			return nil, err
		}

		at, seen := index[id]
		if !seen {
			out := geom.NewMultiPolygon(geom.XY).SetSRID(rs.SRID)
			if err := appendPolygons(out, mp); err != nil {
				return nil, eris.Wrapf(err, "record %d", i)
			}
			index[id] = len(rs.Regions)
			rs.Regions = append(rs.Regions, Region{ID: id, Geom: out})
			continue
		}
		if err := appendPolygons(rs.Regions[at].Geom, mp); err != nil {
			return nil, eris.Wrapf(err, "record %d", i)
		}
	}

	return rs, nil
}

func recordID(rec GeometryRecord, row int, idField string) (string, error) {
	if idField == "" {
		return strconv.Itoa(row + 1), nil
	}
	id, ok := rec.Attrs[idField]
	if !ok {
		return "", eris.Wrapf(ErrMissingColumn, "%q on record %d", idField, row)
	}
	return id, nil
}
