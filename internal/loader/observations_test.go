package loader

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestObservationsCSV(t *testing.T) {
	path := writeTempCSV(t, "lon,lat,temp,station\n1.5,2.5,10.0,alpha\n3.0,4.0,12.5,beta\n")

	obs, err := Observations(path, ObservationOptions{XField: "lon", YField: "lat", SRID: 4326})
	require.NoError(t, err)

	require.Equal(t, 2, obs.Len())
	assert.Equal(t, 4326, obs.SRID)
	assert.Equal(t, 1.5, obs.Coords[0].X())
	assert.Equal(t, 2.5, obs.Coords[0].Y())
	assert.Equal(t, []float64{10.0, 12.5}, obs.Fields["temp"])

	// Text columns stay out of the frame.
	_, ok := obs.Fields["station"]
	assert.False(t, ok)
}

func TestObservationsCSVEmptyNumericCell(t *testing.T) {
	path := writeTempCSV(t, "x,y,v\n1,2,5\n3,4,\n")

	obs, err := Observations(path, ObservationOptions{XField: "x", YField: "y"})
	require.NoError(t, err)

	require.Len(t, obs.Fields["v"], 2)
	assert.Equal(t, 5.0, obs.Fields["v"][0])
	assert.True(t, math.IsNaN(obs.Fields["v"][1]))
}

func TestObservationsCSVMissingCoordinateColumn(t *testing.T) {
	path := writeTempCSV(t, "x,y,v\n1,2,5\n")

	_, err := Observations(path, ObservationOptions{XField: "lon", YField: "lat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lon")
}

func TestObservationsCSVBadCoordinate(t *testing.T) {
	path := writeTempCSV(t, "x,y,v\noops,2,5\n")

	_, err := Observations(path, ObservationOptions{XField: "x", YField: "y"})
	require.Error(t, err)
}

func TestObservationsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, name := range []string{"x", "y", "value"} {
		header.AddCell().SetString(name)
	}
	for _, row := range [][]float64{{1, 2, 7.5}, {3, 4, 9}} {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetFloat(v)
		}
	}
	require.NoError(t, f.Save(path))

	obs, err := Observations(path, ObservationOptions{XField: "x", YField: "y", SRID: 3857})
	require.NoError(t, err)

	require.Equal(t, 2, obs.Len())
	assert.Equal(t, 3.0, obs.Coords[1].X())
	assert.Equal(t, []float64{7.5, 9}, obs.Fields["value"])
}

func TestObservationsHeaderCaseInsensitive(t *testing.T) {
	path := writeTempCSV(t, "Lon,LAT,v\n1,2,5\n")

	obs, err := Observations(path, ObservationOptions{XField: "lon", YField: "lat"})
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Len())
}
