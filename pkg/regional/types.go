package regional

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Observations is an ordered collection of point records with numeric
// attribute columns. Row order is the caller-visible order and is preserved
// through every operation in this package.
type Observations struct {
	// SRID identifies the spatial reference system of Coords.
	SRID int

	// Coords holds one XY coordinate per row.
	Coords []geom.Coord

	// Fields holds named attribute columns, each the same length as Coords.
	// The fit and predict capabilities read whatever columns they need.
	Fields map[string][]float64
}

// Len returns the number of rows.
func (o *Observations) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Coords)
}

// Validate checks that every attribute column matches the row count.
func (o *Observations) Validate() error {
	for name, col := range o.Fields {
		if len(col) != len(o.Coords) {
			return eris.Wrapf(ErrGeometryMismatch,
				"column %q has %d values for %d rows", name, len(col), len(o.Coords))
		}
	}
	return nil
}

// Subset returns a new collection containing the given rows, in the given
// order. Attribute columns are copied so the subset is safe to hand to a
// concurrently running fit.
func (o *Observations) Subset(rows []int) *Observations {
	sub := &Observations{
		SRID:   o.SRID,
		Coords: make([]geom.Coord, len(rows)),
		Fields: make(map[string][]float64, len(o.Fields)),
	}
	for i, r := range rows {
		sub.Coords[i] = o.Coords[r]
	}
	for name, col := range o.Fields {
		out := make([]float64, len(rows))
		for i, r := range rows {
			out[i] = col[r]
		}
		sub.Fields[name] = out
	}
	return sub
}

// GeometryRecord is one raw input row to NormalizeRegions: a geometry plus
// its attribute fields, as produced by a shapefile or GeoJSON loader.
type GeometryRecord struct {
	Attrs map[string]string
	Geom  geom.T
}

// Region is a named polygonal area. Geom consolidates every input geometry
// that shared the region's identifier.
type Region struct {
	ID   string
	Geom *geom.MultiPolygon
}

// RegionSet is an ordered collection of uniquely identified regions.
type RegionSet struct {
	SRID    int
	Regions []Region
}

// Len returns the number of regions.
func (rs *RegionSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Regions)
}

// IDs returns the region identifiers in set order.
func (rs *RegionSet) IDs() []string {
	ids := make([]string, len(rs.Regions))
	for i, r := range rs.Regions {
		ids[i] = r.ID
	}
	return ids
}

// restrict returns a copy of the set containing only the given identifiers,
// preserving set order.
func (rs *RegionSet) restrict(keep map[string]bool) *RegionSet {
	out := &RegionSet{SRID: rs.SRID}
	for _, r := range rs.Regions {
		if keep[r.ID] {
			out.Regions = append(out.Regions, r)
		}
	}
	return out
}

// unknown marks a distance cell that was pruned away and never computed.
var unknown = math.NaN()

// DistanceMatrix holds distances from every observation (row) to every
// region boundary (column), in kilometers for geographic reference systems
// and in coordinate units otherwise. A cell is 0 when the point lies inside
// or on the region boundary, and may be unknown when a pruning cutoff was in
// effect; after construction no row is entirely unknown.
type DistanceMatrix struct {
	regionIDs []string
	rows      int
	cells     []float64
}

// newDistanceMatrix allocates an all-unknown matrix.
func newDistanceMatrix(rows int, regionIDs []string) *DistanceMatrix {
	m := &DistanceMatrix{
		regionIDs: append([]string(nil), regionIDs...),
		rows:      rows,
		cells:     make([]float64, rows*len(regionIDs)),
	}
	for i := range m.cells {
		m.cells[i] = unknown
	}
	return m
}

// Rows returns the observation count.
func (m *DistanceMatrix) Rows() int { return m.rows }

// Cols returns the region count.
func (m *DistanceMatrix) Cols() int { return len(m.regionIDs) }

// RegionIDs returns the column identifiers in column order.
func (m *DistanceMatrix) RegionIDs() []string {
	return append([]string(nil), m.regionIDs...)
}

// At returns the distance for a cell. It is NaN when the cell is unknown.
func (m *DistanceMatrix) At(row, col int) float64 {
	return m.cells[row*len(m.regionIDs)+col]
}

// Known reports whether a cell was actually computed.
func (m *DistanceMatrix) Known(row, col int) bool {
	return !math.IsNaN(m.At(row, col))
}

func (m *DistanceMatrix) set(row, col int, v float64) {
	m.cells[row*len(m.regionIDs)+col] = v
}

// rowAllUnknown reports whether every cell in a row is unknown.
func (m *DistanceMatrix) rowAllUnknown(row int) bool {
	for col := range m.regionIDs {
		if m.Known(row, col) {
			return false
		}
	}
	return true
}

// clone returns a deep copy. Predict uses it so the gap fallback never
// mutates a caller-supplied matrix.
func (m *DistanceMatrix) clone() *DistanceMatrix {
	c := &DistanceMatrix{
		regionIDs: append([]string(nil), m.regionIDs...),
		rows:      m.rows,
		cells:     append([]float64(nil), m.cells...),
	}
	return c
}

// distanceMatrixJSON is the wire form of a matrix. Unknown cells serialize as
// null because NaN is not representable in JSON.
type distanceMatrixJSON struct {
	RegionIDs []string   `json:"region_ids"`
	Rows      int        `json:"rows"`
	Cells     []*float64 `json:"cells"`
}

// MarshalJSON implements json.Marshaler.
func (m *DistanceMatrix) MarshalJSON() ([]byte, error) {
	w := distanceMatrixJSON{
		RegionIDs: m.regionIDs,
		Rows:      m.rows,
		Cells:     make([]*float64, len(m.cells)),
	}
	for i := range m.cells {
		if !math.IsNaN(m.cells[i]) {
			v := m.cells[i]
			w.Cells[i] = &v
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *DistanceMatrix) UnmarshalJSON(data []byte) error {
	var w distanceMatrixJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "regional: decode distance matrix")
	}
	if len(w.Cells) != w.Rows*len(w.RegionIDs) {
		return eris.Errorf("regional: distance matrix has %d cells, want %d",
			len(w.Cells), w.Rows*len(w.RegionIDs))
	}
	m.regionIDs = w.RegionIDs
	m.rows = w.Rows
	m.cells = make([]float64, len(w.Cells))
	for i, c := range w.Cells {
		if c == nil {
			m.cells[i] = unknown
		} else {
			m.cells[i] = *c
		}
	}
	return nil
}
