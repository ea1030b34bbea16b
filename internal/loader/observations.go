// Package loader reads observation tables, region shapefiles, and per-region
// parameter files into the types the regional package consumes.
package loader

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/pkg/regional"
)

// ObservationOptions configures table loading.
type ObservationOptions struct {
	XField string // column holding the x (or longitude) coordinate
	YField string // column holding the y (or latitude) coordinate
	SRID   int
}

// Observations reads a CSV or XLSX table into an ordered observation
// collection. The coordinate columns become points; every other column that
// parses as numeric becomes an attribute column, and non-numeric columns are
// skipped with a debug log.
func Observations(path string, opts ObservationOptions) (*regional.Observations, error) {
	var header []string
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		header, rows, err = readXLSX(path)
	default:
		header, rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, eris.Errorf("loader: %s has no header row", path)
	}

	return tableToObservations(path, header, rows, opts)
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "loader: read %s", path)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "loader: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("loader: %s has no sheets", path)
	}

	var header []string
	var rows [][]string
	for i, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}

// tableToObservations assembles the typed collection from string cells.
func tableToObservations(path string, header []string, rows [][]string, opts ObservationOptions) (*regional.Observations, error) {
	xCol := columnIndex(header, opts.XField)
	yCol := columnIndex(header, opts.YField)
	if xCol < 0 || yCol < 0 {
		return nil, eris.Errorf("loader: coordinate columns %q, %q not found in %s",
			opts.XField, opts.YField, path)
	}

	obs := &regional.Observations{
		SRID:   opts.SRID,
		Fields: make(map[string][]float64),
	}

	// A column is numeric when every non-empty cell parses; empty cells
	// become NaN only in columns that are otherwise numeric, which keeps
	// identifier-style text columns out of the frame entirely.
	numeric := make([]bool, len(header))
	for col := range header {
		if col == xCol || col == yCol {
			continue
		}
		numeric[col] = true
		for _, row := range rows {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64); err != nil {
				numeric[col] = false
				break
			}
		}
		if !numeric[col] {
			zap.L().Debug("skipping non-numeric column",
				zap.String("component", "loader"),
				zap.String("column", header[col]),
			)
		}
	}

	for col, name := range header {
		if numeric[col] && col != xCol && col != yCol {
			obs.Fields[name] = make([]float64, 0, len(rows))
		}
	}

	for i, row := range rows {
		x, err := cellFloat(row, xCol)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %d column %q", i+1, opts.XField)
		}
		y, err := cellFloat(row, yCol)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %d column %q", i+1, opts.YField)
		}
		obs.Coords = append(obs.Coords, geom.Coord{x, y})

		for col, name := range header {
			if !numeric[col] || col == xCol || col == yCol {
				continue
			}
			v, err := cellFloat(row, col)
			if err != nil {
				// Empty cell in a numeric column.
				v = math.NaN()
			}
			obs.Fields[name] = append(obs.Fields[name], v)
		}
	}

	return obs, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cellFloat(row []string, col int) (float64, error) {
	if col >= len(row) {
		return 0, eris.New("missing cell")
	}
	return strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
}
