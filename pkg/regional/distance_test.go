package regional

import (
	"context"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func obsAt(srid int, points ...[2]float64) *Observations {
	o := &Observations{SRID: srid}
	for _, p := range points {
		o.Coords = append(o.Coords, geom.Coord{p[0], p[1]})
	}
	return o
}

func twoSquares(t *testing.T, srid int) *RegionSet {
	t.Helper()
	rs, err := NormalizeRegions([]GeometryRecord{
		{Attrs: map[string]string{"id": "left"}, Geom: square(0, 0, 10, 10)},
		{Attrs: map[string]string{"id": "right"}, Geom: square(20, 0, 30, 10)},
	}, "id")
	require.NoError(t, err)
	rs.SRID = srid
	return rs
}

func TestBuildDistanceMatrix_Exact(t *testing.T) {
	regions := twoSquares(t, 0)
	obs := obsAt(0,
		[2]float64{5, 5},  // inside left
		[2]float64{15, 5}, // between the squares
		[2]float64{25, 5}, // inside right
	)

	m, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{})
	require.NoError(t, err)

	require.Equal(t, 3, m.Rows())
	require.Equal(t, 2, m.Cols())
	assert.Equal(t, []string{"left", "right"}, m.RegionIDs())

	assert.InDelta(t, 0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 15, m.At(0, 1), 1e-12)
	assert.InDelta(t, 5, m.At(1, 0), 1e-12)
	assert.InDelta(t, 5, m.At(1, 1), 1e-12)
	assert.InDelta(t, 0, m.At(2, 1), 1e-12)
}

func TestBuildDistanceMatrix_CornerDistance(t *testing.T) {
	regions := twoSquares(t, 0)
	obs := obsAt(0, [2]float64{13, 14}) // off the top-right corner of left

	m, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 5, m.At(0, 0), 1e-12) // 3-4-5 to corner (10,10)
}

func TestBuildDistanceMatrix_PrunedMatchesExact(t *testing.T) {
	regions := twoSquares(t, 0)
	obs := obsAt(0,
		[2]float64{5, 5},
		[2]float64{12, 5},
		[2]float64{15, 5},
		[2]float64{18, 5},
		[2]float64{25, 5},
		[2]float64{100, 100}, // outside every buffer: fallback row
	)

	exact, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{})
	require.NoError(t, err)

	pruned, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{
		MaxDist: Scalar(4),
	})
	require.NoError(t, err)

	for row := 0; row < exact.Rows(); row++ {
		require.False(t, pruned.rowAllUnknown(row), "row %d left fully unknown", row)
		for col := 0; col < exact.Cols(); col++ {
			if pruned.Known(row, col) {
				assert.Equal(t, exact.At(row, col), pruned.At(row, col),
					"cell (%d,%d)", row, col)
			} else {
				// Anything the cheap candidate test dropped must truly be
				// beyond the cutoff.
				assert.Greater(t, exact.At(row, col), 4.0, "cell (%d,%d)", row, col)
			}
		}
	}

	// The fallback row was recomputed against all regions.
	assert.True(t, pruned.Known(5, 0))
	assert.True(t, pruned.Known(5, 1))
}

func TestBuildDistanceMatrix_PerRegionCutoff(t *testing.T) {
	regions := twoSquares(t, 0)
	obs := obsAt(0, [2]float64{14, 5}) // 4 from left, 6 from right

	m, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{
		MaxDist: PerRegion(map[string]float64{"left": 5}, 1),
	})
	require.NoError(t, err)
	assert.True(t, m.Known(0, 0))
	assert.False(t, m.Known(0, 1))
}

func TestBuildDistanceMatrix_Geographic(t *testing.T) {
	rs, err := NormalizeRegions([]GeometryRecord{
		{Geom: square(1, 59.5, 2, 60.5)},
	}, "")
	require.NoError(t, err)
	rs.SRID = 4326

	obs := obsAt(4326, [2]float64{0, 60})

	m, err := BuildDistanceMatrix(context.Background(), obs, rs, DistanceOptions{})
	require.NoError(t, err)

	// One degree of separation scaled by 111 * cos(60°) = 55.5 km/degree.
	assert.InDelta(t, 55.5, m.At(0, 0), 1e-9)
}

func TestBuildDistanceMatrix_PoleFallback(t *testing.T) {
	rs, err := NormalizeRegions([]GeometryRecord{
		{Geom: square(10, 80, 12, 82)},
	}, "")
	require.NoError(t, err)
	rs.SRID = 4326

	// At 89° the 200 km cutoff converts to over 100 degrees, which reaches
	// past the pole: pruning must be abandoned and every cell computed.
	obs := obsAt(4326, [2]float64{-170, 89}, [2]float64{100, 40})

	m, err := BuildDistanceMatrix(context.Background(), obs, rs, DistanceOptions{
		MaxDist: Scalar(200),
	})
	require.NoError(t, err)
	for row := 0; row < m.Rows(); row++ {
		assert.True(t, m.Known(row, 0))
	}
}

func TestBuildDistanceMatrix_ParallelDeterministic(t *testing.T) {
	regions := twoSquares(t, 0)
	var pts [][2]float64
	for i := 0; i < 50; i++ {
		pts = append(pts, [2]float64{float64(i), float64(i % 13)})
	}
	obs := obsAt(0, pts...)

	serial, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{Workers: 1})
	require.NoError(t, err)
	parallel, err := BuildDistanceMatrix(context.Background(), obs, regions, DistanceOptions{Workers: 8})
	require.NoError(t, err)

	assert.Equal(t, serial.cells, parallel.cells)
}

func TestBuildDistanceMatrix_Errors(t *testing.T) {
	regions := twoSquares(t, 0)

	_, err := BuildDistanceMatrix(context.Background(), obsAt(4326, [2]float64{0, 0}), regions, DistanceOptions{})
	assert.True(t, eris.Is(err, ErrGeometryMismatch))

	_, err = BuildDistanceMatrix(context.Background(), obsAt(0, [2]float64{0, 0}), &RegionSet{}, DistanceOptions{})
	assert.True(t, eris.Is(err, ErrEmptyRegions))

	_, err = BuildDistanceMatrix(context.Background(), obsAt(0, [2]float64{0, 0}), regions, DistanceOptions{
		MaxDist: Scalar(math.NaN()),
	})
	assert.True(t, eris.Is(err, ErrInvalidParameter))
}

func TestRegionWithHole(t *testing.T) {
	// 10x10 square with a 4x4 hole in the middle.
	outer := []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0}
	hole := []float64{3, 3, 7, 3, 7, 7, 3, 7, 3, 3}
	p := geom.NewPolygonFlat(geom.XY, append(append([]float64{}, outer...), hole...), []int{10, 20})

	rs, err := NormalizeRegions([]GeometryRecord{{Geom: p}}, "")
	require.NoError(t, err)

	obs := obsAt(0,
		[2]float64{1, 1}, // inside the ring
		[2]float64{5, 5}, // center of the hole
	)
	m, err := BuildDistanceMatrix(context.Background(), obs, rs, DistanceOptions{})
	require.NoError(t, err)

	assert.InDelta(t, 0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 2, m.At(1, 0), 1e-12) // hole center to hole edge
}
