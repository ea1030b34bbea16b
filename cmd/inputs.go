package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/internal/loader"
	"github.com/sells-group/mosaic/internal/store"
	"github.com/sells-group/mosaic/pkg/regional"
)

// inputs bundles the loaded observation table and region set that every
// modeling command starts from.
type inputs struct {
	obs     *regional.Observations
	regions *regional.RegionSet
}

// registerInputFlags adds the flags shared by the modeling commands.
// Defaults come from config so flags only need to name what differs.
func registerInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("observations", "", "observation table (.csv or .xlsx; default from config)")
	cmd.Flags().String("regions", "", "region shapefile (default from config)")
	cmd.Flags().String("region-id", "", "DBF column identifying regions (default from config)")
}

func loadInputs(cmd *cobra.Command) (*inputs, error) {
	obsPath, _ := cmd.Flags().GetString("observations")
	if obsPath == "" {
		obsPath = cfg.Data.Observations
	}
	regPath, _ := cmd.Flags().GetString("regions")
	if regPath == "" {
		regPath = cfg.Data.Regions
	}
	idField, _ := cmd.Flags().GetString("region-id")
	if idField == "" {
		idField = cfg.Data.RegionID
	}
	if obsPath == "" || regPath == "" {
		return nil, eris.New("observations and regions paths are required (flag or config)")
	}

	obs, err := loader.Observations(obsPath, loader.ObservationOptions{
		XField: cfg.Data.XField,
		YField: cfg.Data.YField,
		SRID:   cfg.Data.SRID,
	})
	if err != nil {
		return nil, err
	}

	regions, err := loader.Regions(regPath, idField, cfg.Data.SRID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("inputs loaded",
		zap.String("component", "cmd"),
		zap.Int("observations", obs.Len()),
		zap.Int("regions", regions.Len()),
	)
	return &inputs{obs: obs, regions: regions}, nil
}

// paramFlag reads a float flag as a scalar parameter, optionally overridden
// by a per-region YAML file named by <name>-file. Zero is a meaningful value
// here (a zero smoothing radius means sharp borders).
func paramFlag(cmd *cobra.Command, name string, def float64) (regional.Param, error) {
	if file, _ := cmd.Flags().GetString(name + "-file"); file != "" {
		return loader.Param(file)
	}
	v, _ := cmd.Flags().GetFloat64(name)
	if !cmd.Flags().Changed(name) && def > 0 {
		v = def
	}
	return regional.Scalar(v), nil
}

// cutoffFlag is paramFlag for pruning cutoffs, where zero means no cutoff at
// all rather than a zero-kilometer radius.
func cutoffFlag(cmd *cobra.Command, name string, def float64) (regional.Param, error) {
	if file, _ := cmd.Flags().GetString(name + "-file"); file != "" {
		return loader.Param(file)
	}
	v, _ := cmd.Flags().GetFloat64(name)
	if !cmd.Flags().Changed(name) && def > 0 {
		v = def
	}
	if v == 0 {
		return regional.Param{}, nil
	}
	return regional.Scalar(v), nil
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// recordRun wraps a command body with run bookkeeping. Store failures are
// logged rather than failing the command.
func recordRun(ctx context.Context, command string, params map[string]any, body func(ctx context.Context) error) error {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run store unavailable",
			zap.String("component", "cmd"),
			zap.Error(err),
		)
		return body(ctx)
	}
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, command, params)
	if err != nil {
		zap.L().Warn("create run record",
			zap.String("component", "cmd"),
			zap.Error(err),
		)
		return body(ctx)
	}

	bodyErr := body(ctx)
	if err := st.FinishRun(ctx, run.ID, bodyErr); err != nil {
		zap.L().Warn("finish run record",
			zap.String("component", "cmd"),
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	return bodyErr
}
