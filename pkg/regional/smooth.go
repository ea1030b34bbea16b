package regional

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Mode selects what Ensemble.Predict combines.
type Mode int

const (
	// ModeValue combines point predictions.
	ModeValue Mode = iota

	// ModeStderr combines per-region standard errors into a weighted linear
	// average. The linear rule deliberately does not assume independence
	// between adjacent regional models, so the result is an upper bound on
	// the combined standard error rather than a root-sum-of-squares.
	ModeStderr
)

// PredictOptions configures Ensemble.Predict.
type PredictOptions struct {
	// Smooth is the distance from a region boundary within which that
	// region's prediction weight decays from 1 to 0.
	Smooth Param

	// Mode selects prediction values or standard errors.
	Mode Mode

	// Distances is an optional precomputed matrix for these observations
	// and the ensemble's regions. When nil it is computed fresh, with
	// Smooth as the pruning cutoff.
	Distances *DistanceMatrix

	// Workers bounds the per-region worker pool. <= 0 means one per CPU.
	Workers int

	// Progress, when non-nil, receives per-region completion updates.
	Progress ProgressFunc
}

// Predict produces one output per observation by blending every applicable
// region's model output. Within Smooth of a region boundary the region's
// weight is ((smooth-d)/smooth)²; with smooth 0 membership is binary and
// points on a shared border are split equally. An observation outside every
// region's smoothing window is assigned to its nearest region with full
// weight, so small gaps from boundary simplification never drop a point.
// Rows whose applicable regions are all absent yield NaN.
func (e *Ensemble) Predict(ctx context.Context, obs *Observations, opts PredictOptions) ([]float64, error) {
	if err := opts.Smooth.Validate("smooth"); err != nil {
		return nil, err
	}
	if !opts.Smooth.IsSet() {
		return nil, eris.Wrap(ErrInvalidParameter, "smooth is required")
	}
	if opts.Mode != ModeValue && opts.Mode != ModeStderr {
		return nil, eris.Wrapf(ErrInvalidParameter, "mode %d", opts.Mode)
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode == ModeStderr {
		for id, m := range e.models {
			if _, ok := m.(UncertaintyModel); !ok {
				return nil, eris.Wrapf(ErrInvalidParameter,
					"model for region %q cannot report standard errors", id)
			}
		}
	}

	dm := opts.Distances
	if dm == nil {
		var err error
		dm, err = BuildDistanceMatrix(ctx, obs, e.regions, DistanceOptions{
			MaxDist: opts.Smooth,
			Workers: opts.Workers,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := checkMatrix(dm, obs, e.regions); err != nil {
		return nil, err
	}

	dm = dm.clone()
	applyGapFallback(dm, e.regions, opts.Smooth)

	contribs := make([]*contribution, e.regions.Len())
	prog := newTracker("predict", e.regions.Len(), opts.Progress)

	err := runIndexed(ctx, opts.Workers, e.regions.Len(), func(gctx context.Context, col int) error {
		region := e.regions.Regions[col]
		c, err := regionContribution(gctx, dm, col, e.models[region.ID], obs, region.ID, opts)
		if err != nil {
			return err
		}
		contribs[col] = c
		prog.step()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Single-threaded reduction keyed by observation index.
	total := make([]float64, obs.Len())
	weightSum := make([]float64, obs.Len())
	for _, c := range contribs {
		for i, row := range c.rows {
			total[row] += c.weights[i] * c.values[i]
			weightSum[row] += c.weights[i]
		}
	}

	out := make([]float64, obs.Len())
	for i := range out {
		if weightSum[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = total[i] / weightSum[i]
	}
	return out, nil
}

// contribution holds one region's weighted outputs for the rows inside its
// smoothing window.
type contribution struct {
	rows    []int
	weights []float64
	values  []float64
}

// regionContribution evaluates one region's model over the rows within its
// smoothing distance and pairs each output with its decay weight.
func regionContribution(ctx context.Context, dm *DistanceMatrix, col int, model Model, obs *Observations, regionID string, opts PredictOptions) (*contribution, error) {
	smooth := opts.Smooth.For(regionID)
	c := &contribution{}
	for row := 0; row < dm.Rows(); row++ {
		if !dm.Known(row, col) {
			continue
		}
		d := dm.At(row, col)
		if d > smooth {
			continue
		}
		c.rows = append(c.rows, row)
		c.weights = append(c.weights, decayWeight(d, smooth))
	}
	if len(c.rows) == 0 {
		return c, nil
	}

	subset := obs.Subset(c.rows)
	var values []float64
	var err error
	switch opts.Mode {
	case ModeStderr:
		values, err = model.(UncertaintyModel).PredictStderr(ctx, subset)
	default:
		values, err = model.Predict(ctx, subset)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "predict region %q", regionID)
	}
	if len(values) != len(c.rows) {
		return nil, eris.Wrapf(ErrGeometryMismatch,
			"region %q returned %d predictions for %d rows", regionID, len(values), len(c.rows))
	}

	if opts.Mode == ModeStderr {
		clamped := 0
		for i, v := range values {
			if v < 0 {
				values[i] = 0
				clamped++
			}
		}
		if clamped > 0 {
			zap.L().Warn("negative standard errors clamped to zero",
				zap.String("component", "regional.smooth"),
				zap.String("region", regionID),
				zap.Int("count", clamped),
			)
		}
	}

	c.values = values
	return c, nil
}

// decayWeight is the bounded quadratic decay: 1 at the boundary, 0 at
// distance smooth. The square keeps the first derivative of the combined
// surface continuous at the smoothing-zone edge.
func decayWeight(d, smooth float64) float64 {
	if smooth == 0 {
		return 1
	}
	f := (smooth - d) / smooth
	return f * f
}

// applyGapFallback forces the nearest region's cell to zero for every row
// whose minimum known distance is at or beyond that region's smoothing
// distance, guaranteeing the row at least one full-weight region.
func applyGapFallback(dm *DistanceMatrix, regions *RegionSet, smooth Param) {
	for row := 0; row < dm.Rows(); row++ {
		minCol := -1
		minVal := math.Inf(1)
		for col := 0; col < dm.Cols(); col++ {
			if dm.Known(row, col) && dm.At(row, col) < minVal {
				minVal = dm.At(row, col)
				minCol = col
			}
		}
		if minCol < 0 {
			continue
		}
		if minVal >= smooth.For(regions.Regions[minCol].ID) {
			dm.set(row, minCol, 0)
		}
	}
}
