package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/mosaic/pkg/linmodel"
	"github.com/sells-group/mosaic/pkg/regional"
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit one linear model per region",
	Long:  "Selects each region's training set from observations within the buffer distance of its boundary, widened to the min-n nearest when too few, and fits a least-squares model per region.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := loadInputs(cmd)
		if err != nil {
			return err
		}
		ens, trainer, err := fitFromFlags(ctx, cmd, in)
		if err != nil {
			return err
		}

		formatFitSummary(os.Stdout, ens, trainer, in.regions.Len())
		return nil
	},
}

// registerFitFlags adds the model-building flags shared by fit, predict, and
// serve.
func registerFitFlags(cmd *cobra.Command) {
	registerInputFlags(cmd)
	cmd.Flags().Float64("buffer", 0, "training buffer distance around each region (default from config)")
	cmd.Flags().String("buffer-file", "", "per-region buffer YAML file")
	cmd.Flags().Int("min-n", 0, "minimum training observations per region (default from config)")
	cmd.Flags().String("response", "", "response column (default from config)")
	cmd.Flags().StringSlice("features", nil, "feature columns (default from config)")
	cmd.Flags().Int("workers", 0, "fit worker pool size (default one per CPU)")
}

// fitFromFlags builds the ensemble named by the shared fit flags.
func fitFromFlags(ctx context.Context, cmd *cobra.Command, in *inputs) (*regional.Ensemble, *linmodel.Trainer, error) {
	buffer, err := paramFlag(cmd, "buffer", cfg.Fit.Buffer)
	if err != nil {
		return nil, nil, err
	}

	minN, _ := cmd.Flags().GetInt("min-n")
	if minN == 0 {
		minN = cfg.Fit.MinN
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = cfg.Fit.Workers
	}

	response, _ := cmd.Flags().GetString("response")
	if response == "" {
		response = cfg.Fit.Response
	}
	if response == "" {
		return nil, nil, eris.New("response column is required (flag or config)")
	}
	features, _ := cmd.Flags().GetStringSlice("features")
	if len(features) == 0 {
		features = cfg.Fit.Features
	}

	trainer := &linmodel.Trainer{
		Response:  response,
		Features:  features,
		Intercept: cfg.Fit.Intercept,
	}

	var ens *regional.Ensemble
	params := map[string]any{
		"response": response,
		"features": features,
		"min_n":    minN,
	}
	err = recordRun(ctx, "fit", params, func(ctx context.Context) error {
		var fitErr error
		ens, fitErr = regional.FitEnsemble(ctx, in.obs, in.regions, trainer.Fit, regional.FitOptions{
			Buffer:  buffer,
			MinN:    minN,
			Workers: workers,
		})
		return fitErr
	})
	if err != nil {
		return nil, nil, err
	}
	return ens, trainer, nil
}

func formatFitSummary(out io.Writer, ens *regional.Ensemble, trainer *linmodel.Trainer, total int) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tROWS\tCOEFFICIENTS")
	for _, id := range ens.Regions().IDs() {
		lm, ok := ens.Model(id).(*linmodel.Model)
		if !ok {
			fmt.Fprintf(w, "%s\t-\t-\n", id)
			continue
		}
		coefs := make([]string, 0, len(lm.Coefficients()))
		for _, c := range lm.Coefficients() {
			coefs = append(coefs, fmt.Sprintf("%.4g", c))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", id, lm.TrainingRows(), strings.Join(coefs, ", "))
	}
	w.Flush()

	fmt.Fprintf(out, "\nFitted %d of %d regions (response %s)\n",
		ens.Len(), total, trainer.Response)
}

func init() {
	registerFitFlags(fitCmd)
	rootCmd.AddCommand(fitCmd)
}
