package regional

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Model is the prediction capability every fitted regional model must
// expose. Predict returns one value per input row, in row order; zero input
// rows yield an empty result. Implementations must be safe for concurrent
// use with disjoint inputs.
type Model interface {
	Predict(ctx context.Context, obs *Observations) ([]float64, error)
}

// UncertaintyModel is implemented by models that can report a standard error
// per prediction. Ensemble.Predict in ModeStderr requires it of every
// regional model.
type UncertaintyModel interface {
	PredictStderr(ctx context.Context, obs *Observations) ([]float64, error)
}

// FitFunc maps a training subset to a fitted model. It may fail; a failure
// skips that region rather than aborting the build. It must be safe to
// invoke concurrently with disjoint inputs.
type FitFunc func(ctx context.Context, training *Observations) (Model, error)

// Ensemble is the fitted output of FitEnsemble: one model per region whose
// fit succeeded, plus the region geometries restricted to those identifiers.
// It is read-only after construction.
type Ensemble struct {
	regions *RegionSet
	models  map[string]Model
}

// Regions returns the surviving regions in original order.
func (e *Ensemble) Regions() *RegionSet { return e.regions }

// Model returns the fitted model for a region identifier, or nil.
func (e *Ensemble) Model(id string) Model { return e.models[id] }

// Len returns the number of fitted regions.
func (e *Ensemble) Len() int { return len(e.models) }

// FitOptions configures FitEnsemble.
type FitOptions struct {
	// Buffer is the maximum distance from a region boundary within which an
	// observation joins that region's training set.
	Buffer Param

	// MinN guarantees a minimum training-set size per region: when fewer
	// than MinN observations fall inside the buffer, the MinN nearest
	// observations are used instead. Must be >= 1.
	MinN int

	// Distances is an optional precomputed matrix for these observations
	// and regions. When nil, an exact matrix is computed first.
	Distances *DistanceMatrix

	// Workers bounds the per-region worker pool. <= 0 means one per CPU.
	Workers int

	// Progress, when non-nil, receives per-region completion updates.
	Progress ProgressFunc
}

// FitEnsemble builds one model per region. Each region's training set is
// every observation within Buffer of its boundary, widened to the MinN
// nearest observations when the buffer yields too few. Per-region fit
// failures are logged and skipped; only when every region fails does the
// build abort with ErrAllModelsFailed.
func FitEnsemble(ctx context.Context, obs *Observations, regions *RegionSet, fit FitFunc, opts FitOptions) (*Ensemble, error) {
	if regions.Len() == 0 {
		return nil, eris.Wrap(ErrEmptyRegions, "fit ensemble")
	}
	if fit == nil {
		return nil, eris.Wrap(ErrInvalidParameter, "fit function is nil")
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Buffer.Validate("buffer"); err != nil {
		return nil, err
	}
	if opts.MinN < 1 {
		return nil, eris.Wrapf(ErrInvalidParameter, "min_n %d < 1", opts.MinN)
	}
	if opts.MinN > obs.Len() {
		return nil, eris.Wrapf(ErrInvalidParameter,
			"min_n %d exceeds %d observations", opts.MinN, obs.Len())
	}

	dm := opts.Distances
	if dm == nil {
		// Fit needs distances beyond the buffer for the nearest-neighbor
		// fallback, so the matrix is computed without a cutoff.
		var err error
		dm, err = BuildDistanceMatrix(ctx, obs, regions, DistanceOptions{Workers: opts.Workers})
		if err != nil {
			return nil, err
		}
	}
	if err := checkMatrix(dm, obs, regions); err != nil {
		return nil, err
	}

	models := make(map[string]Model, regions.Len())
	var mu sync.Mutex
	prog := newTracker("fit", regions.Len(), opts.Progress)

	err := runIndexed(ctx, opts.Workers, regions.Len(), func(gctx context.Context, col int) error {
		region := regions.Regions[col]
		rows := selectTraining(dm, col, opts.Buffer.For(region.ID), opts.MinN)

		model, fitErr := fit(gctx, obs.Subset(rows))
		if fitErr != nil {
			zap.L().Warn("region fit failed, skipping region",
				zap.String("component", "regional.ensemble"),
				zap.String("region", region.ID),
				zap.Int("training_rows", len(rows)),
				zap.Error(fitErr),
			)
			prog.step()
			return nil
		}
		mu.Lock()
		models[region.ID] = model
		mu.Unlock()
		prog.step()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, eris.Wrapf(ErrAllModelsFailed, "%d regions", regions.Len())
	}

	keep := make(map[string]bool, len(models))
	for id := range models {
		keep[id] = true
	}
	return &Ensemble{regions: regions.restrict(keep), models: models}, nil
}

// selectTraining picks the training rows for one region: everything within
// buffer, or the minN nearest rows (ties broken by row order) when the
// buffer selection is too small. Unknown cells sort after every known
// distance.
func selectTraining(dm *DistanceMatrix, col int, buffer float64, minN int) []int {
	var rows []int
	for row := 0; row < dm.Rows(); row++ {
		if dm.Known(row, col) && dm.At(row, col) <= buffer {
			rows = append(rows, row)
		}
	}
	if len(rows) >= minN {
		return rows
	}

	ordered := make([]int, dm.Rows())
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		da, db := dm.At(ordered[a], col), dm.At(ordered[b], col)
		switch {
		case !dm.Known(ordered[a], col):
			return false
		case !dm.Known(ordered[b], col):
			return true
		default:
			return da < db
		}
	})
	return ordered[:minN]
}

// checkMatrix verifies that a supplied distance matrix lines up with the
// observations and regions it is used against.
func checkMatrix(dm *DistanceMatrix, obs *Observations, regions *RegionSet) error {
	if dm.Rows() != obs.Len() {
		return eris.Wrapf(ErrGeometryMismatch,
			"distance matrix has %d rows for %d observations", dm.Rows(), obs.Len())
	}
	if dm.Cols() != regions.Len() {
		return eris.Wrapf(ErrGeometryMismatch,
			"distance matrix has %d columns for %d regions", dm.Cols(), regions.Len())
	}
	for i, id := range dm.regionIDs {
		if regions.Regions[i].ID != id {
			return eris.Wrapf(ErrGeometryMismatch,
				"distance matrix column %d is %q, region is %q", i, id, regions.Regions[i].ID)
		}
	}
	return nil
}
