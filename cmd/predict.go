package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mosaic/internal/loader"
	"github.com/sells-group/mosaic/pkg/regional"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Fit regional models and predict at new locations",
	Long:  "Fits the regional ensemble from the training observations, then predicts at the locations in the --at table, blending region models smoothly within the smoothing radius of region borders.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := loadInputs(cmd)
		if err != nil {
			return err
		}

		atPath, _ := cmd.Flags().GetString("at")
		if atPath == "" {
			return eris.New("--at table of prediction locations is required")
		}
		at, err := loader.Observations(atPath, loader.ObservationOptions{
			XField: cfg.Data.XField,
			YField: cfg.Data.YField,
			SRID:   cfg.Data.SRID,
		})
		if err != nil {
			return err
		}

		smooth, err := paramFlag(cmd, "smooth", cfg.Predict.Smooth)
		if err != nil {
			return err
		}
		stderrMode, _ := cmd.Flags().GetBool("stderr")
		out, _ := cmd.Flags().GetString("out")

		ens, _, err := fitFromFlags(ctx, cmd, in)
		if err != nil {
			return err
		}

		opts := regional.PredictOptions{
			Smooth:  smooth,
			Workers: cfg.Predict.Workers,
		}
		if stderrMode {
			opts.Mode = regional.ModeStderr
		}

		var values []float64
		params := map[string]any{
			"locations": at.Len(),
			"stderr":    stderrMode,
		}
		err = recordRun(ctx, "predict", params, func(ctx context.Context) error {
			var predErr error
			values, predErr = ens.Predict(ctx, at, opts)
			return predErr
		})
		if err != nil {
			return err
		}

		return writePredictionsCSV(out, at, values, stderrMode)
	},
}

// writePredictionsCSV echoes the prediction coordinates alongside the value
// (or stderr) column.
func writePredictionsCSV(path string, at *regional.Observations, values []float64, stderrMode bool) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
	}

	valueCol := "value"
	if stderrMode {
		valueCol = "stderr"
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{cfg.Data.XField, cfg.Data.YField, valueCol}); err != nil {
		return eris.Wrap(err, "write header")
	}
	for i, c := range at.Coords {
		v := ""
		if !math.IsNaN(values[i]) {
			v = strconv.FormatFloat(values[i], 'g', -1, 64)
		}
		record := []string{
			strconv.FormatFloat(c.X(), 'g', -1, 64),
			strconv.FormatFloat(c.Y(), 'g', -1, 64),
			v,
		}
		if err := w.Write(record); err != nil {
			return eris.Wrapf(err, "write row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "flush")
	}

	if path != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d predictions to %s\n", len(values), path)
	}
	return nil
}

func init() {
	registerFitFlags(predictCmd)
	predictCmd.Flags().String("at", "", "table of prediction locations (.csv or .xlsx)")
	predictCmd.Flags().Float64("smooth", 0, "smoothing radius for blending across region borders (default from config)")
	predictCmd.Flags().String("smooth-file", "", "per-region smoothing radius YAML file")
	predictCmd.Flags().Bool("stderr", false, "predict standard errors instead of values")
	predictCmd.Flags().String("out", "", "output CSV path (default stdout)")
	rootCmd.AddCommand(predictCmd)
}
