package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/internal/store"
	"github.com/sells-group/mosaic/pkg/regional"
)

const matrixCacheTTL = 7 * 24 * time.Hour

var distancesCmd = &cobra.Command{
	Use:   "distances",
	Short: "Compute the observation-to-region distance matrix",
	Long:  "Computes the distance from every observation to every region boundary and writes it as CSV, one column per region. Results are cached locally keyed by the inputs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := loadInputs(cmd)
		if err != nil {
			return err
		}

		maxDist, err := cutoffFlag(cmd, "max-dist", cfg.Predict.MaxDist)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		params := map[string]any{
			"observations": in.obs.Len(),
			"regions":      in.regions.Len(),
		}
		return recordRun(ctx, "distances", params, func(ctx context.Context) error {
			m, err := cachedMatrix(ctx, in, maxDist, noCache)
			if err != nil {
				return err
			}
			return writeMatrixCSV(out, m)
		})
	},
}

// cachedMatrix returns the distance matrix for the inputs, consulting the
// local cache unless disabled.
func cachedMatrix(ctx context.Context, in *inputs, maxDist regional.Param, noCache bool) (*regional.DistanceMatrix, error) {
	var st *store.SQLiteStore
	var fp string

	if !noCache {
		var err error
		st, err = initStore(ctx)
		if err != nil {
			zap.L().Warn("distance cache unavailable",
				zap.String("component", "cmd"),
				zap.Error(err),
			)
		} else {
			defer st.Close() //nolint:errcheck
			fp = store.MatrixFingerprint(in.obs, in.regions, maxDist)
			if m, err := st.GetCachedMatrix(ctx, fp); err == nil && m != nil {
				zap.L().Info("distance matrix cache hit",
					zap.String("component", "cmd"),
					zap.String("fingerprint", fp[:12]),
				)
				return m, nil
			}
		}
	}

	m, err := regional.BuildDistanceMatrix(ctx, in.obs, in.regions, regional.DistanceOptions{
		MaxDist: maxDist,
		Workers: cfg.Predict.Workers,
		Progress: func(phase string, done, total int) {
			zap.L().Debug("progress",
				zap.String("component", "cmd"),
				zap.String("phase", phase),
				zap.Int("done", done),
				zap.Int("total", total),
			)
		},
	})
	if err != nil {
		return nil, err
	}

	if st != nil {
		if err := st.SetCachedMatrix(ctx, fp, m, matrixCacheTTL); err != nil {
			zap.L().Warn("cache distance matrix",
				zap.String("component", "cmd"),
				zap.Error(err),
			)
		}
	}
	return m, nil
}

// writeMatrixCSV writes one row per observation with a column per region.
// Unknown cells are left empty.
func writeMatrixCSV(path string, m *regional.DistanceMatrix) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
	}

	w := csv.NewWriter(f)
	if err := w.Write(m.RegionIDs()); err != nil {
		return eris.Wrap(err, "write header")
	}

	record := make([]string, m.Cols())
	for row := 0; row < m.Rows(); row++ {
		for col := 0; col < m.Cols(); col++ {
			v := m.At(row, col)
			if math.IsNaN(v) {
				record[col] = ""
			} else {
				record[col] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "write row %d", row)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "flush")
	}

	if path != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d x %d distance matrix to %s\n", m.Rows(), m.Cols(), path)
	}
	return nil
}

func init() {
	registerInputFlags(distancesCmd)
	distancesCmd.Flags().Float64("max-dist", 0, "pruning cutoff; distances beyond it are not computed (0 disables pruning)")
	distancesCmd.Flags().String("max-dist-file", "", "per-region cutoff YAML file")
	distancesCmd.Flags().String("out", "", "output CSV path (default stdout)")
	distancesCmd.Flags().Bool("no-cache", false, "skip the local distance cache")
	rootCmd.AddCommand(distancesCmd)
}
