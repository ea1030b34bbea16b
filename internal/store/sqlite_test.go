package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/mosaic/pkg/regional"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "fit", map[string]any{"buffer": 50.0})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "fit", got.Command)
	assert.Equal(t, 50.0, got.Params["buffer"])
	assert.Nil(t, got.FinishedAt)
}

func TestFinishRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "predict", nil)
	require.NoError(t, err)

	require.NoError(t, s.FinishRun(ctx, run.ID, nil))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotNil(t, got.FinishedAt)

	failed, err := s.CreateRun(ctx, "predict", nil)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, failed.ID, eris.New("boom")))
	got, err = s.GetRun(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "boom")
}

func TestFinishRunNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishRun(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "fit", nil)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "predict", nil)
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, a.ID, nil))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := s.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testRegionSet(t *testing.T) *regional.RegionSet {
	t.Helper()
	poly := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0}, []int{10})
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return &regional.RegionSet{Regions: []regional.Region{{ID: "r1", Geom: mp}}}
}

func TestMatrixCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := &regional.Observations{
		Coords: []geom.Coord{{1, 1}, {20, 20}},
		Fields: map[string][]float64{},
	}
	set := testRegionSet(t)

	m, err := regional.BuildDistanceMatrix(ctx, obs, set, regional.DistanceOptions{})
	require.NoError(t, err)

	fp := MatrixFingerprint(obs, set, regional.Param{})
	require.NoError(t, s.SetCachedMatrix(ctx, fp, m, time.Hour))

	got, err := s.GetCachedMatrix(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.RegionIDs(), got.RegionIDs())
	require.Equal(t, m.Rows(), got.Rows())
	for row := 0; row < m.Rows(); row++ {
		for col := 0; col < m.Cols(); col++ {
			assert.Equal(t, m.At(row, col), got.At(row, col))
		}
	}
}

func TestMatrixCacheMiss(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetCachedMatrix(context.Background(), "no-such-fingerprint")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMatrixCacheExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := &regional.Observations{Coords: []geom.Coord{{1, 1}}, Fields: map[string][]float64{}}
	set := testRegionSet(t)
	m, err := regional.BuildDistanceMatrix(ctx, obs, set, regional.DistanceOptions{})
	require.NoError(t, err)

	require.NoError(t, s.SetCachedMatrix(ctx, "fp", m, -time.Minute))

	got, err := s.GetCachedMatrix(ctx, "fp")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.DeleteExpiredMatrices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFingerprintSensitivity(t *testing.T) {
	obs := &regional.Observations{Coords: []geom.Coord{{1, 1}}, Fields: map[string][]float64{}}
	set := testRegionSet(t)

	a := MatrixFingerprint(obs, set, regional.Param{})
	b := MatrixFingerprint(obs, set, regional.Scalar(25))
	assert.NotEqual(t, a, b)

	moved := &regional.Observations{Coords: []geom.Coord{{2, 1}}, Fields: map[string][]float64{}}
	assert.NotEqual(t, a, MatrixFingerprint(moved, set, regional.Param{}))

	assert.Equal(t, a, MatrixFingerprint(obs, set, regional.Param{}))
}
