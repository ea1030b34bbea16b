package regional

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DistanceOptions configures BuildDistanceMatrix.
type DistanceOptions struct {
	// MaxDist is an optional cutoff. When set, each region only gets exact
	// distances for observations inside its bounding box expanded by the
	// cutoff; everything else stays unknown. Unset means exact distances
	// everywhere.
	MaxDist Param

	// Workers bounds the region-level worker pool. <= 0 means one per CPU.
	Workers int

	// Progress, when non-nil, receives per-region completion updates.
	Progress ProgressFunc
}

// BuildDistanceMatrix computes the distance from every observation to every
// region boundary. Rows follow observation order, columns follow region
// order. With a MaxDist cutoff, cells outside a region's candidate set stay
// unknown, but any observation left unknown against every region is
// recomputed exactly against all of them, so no row ends fully unknown.
//
// For geographic reference systems the cutoff is converted from kilometers
// to degrees using the most poleward observation latitude, and distances are
// reported in kilometers via the same factor. If the converted radius would
// reach past a pole the cutoff is abandoned for the whole call and exact
// distances are computed.
func BuildDistanceMatrix(ctx context.Context, obs *Observations, regions *RegionSet, opts DistanceOptions) (*DistanceMatrix, error) {
	if regions.Len() == 0 {
		return nil, eris.Wrap(ErrEmptyRegions, "build distance matrix")
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if obs.Len() > 0 && obs.SRID != regions.SRID {
		return nil, eris.Wrapf(ErrGeometryMismatch,
			"observations SRID %d, regions SRID %d", obs.SRID, regions.SRID)
	}
	if err := opts.MaxDist.Validate("max_dist"); err != nil {
		return nil, err
	}

	geographic := isGeographic(regions.SRID)
	kmPerDeg := 1.0
	if geographic {
		kmPerDeg = kmPerDegree(mostPolewardLat(obs))
	}

	prune := opts.MaxDist.IsSet()
	if prune && geographic {
		if radius := maxCutoff(opts.MaxDist, regions) / kmPerDeg; nearPole(mostPolewardLat(obs), radius) {
			zap.L().Warn("distance cutoff reaches a pole, falling back to exact computation",
				zap.String("component", "regional.distance"),
				zap.Float64("radius_deg", radius),
			)
			prune = false
		}
	}

	m := newDistanceMatrix(obs.Len(), regions.IDs())
	prog := newTracker("distances", regions.Len(), opts.Progress)

	err := runIndexed(ctx, opts.Workers, regions.Len(), func(_ context.Context, col int) error {
		region := regions.Regions[col]
		if prune {
			radius := opts.MaxDist.For(region.ID)
			if geographic {
				radius /= kmPerDeg
			}
			bounds := region.Geom.Bounds()
			for row, c := range obs.Coords {
				if inExpandedBounds(bounds, c, radius) {
					m.set(row, col, boundaryDistance(region.Geom, c)*kmPerDeg)
				}
			}
		} else {
			for row, c := range obs.Coords {
				m.set(row, col, boundaryDistance(region.Geom, c)*kmPerDeg)
			}
		}
		prog.step()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if prune {
		if err := fillUnknownRows(ctx, m, obs, regions, kmPerDeg, opts.Workers); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// fillUnknownRows recomputes, without pruning, every row that ended up
// outside all region candidate sets.
func fillUnknownRows(ctx context.Context, m *DistanceMatrix, obs *Observations, regions *RegionSet, kmPerDeg float64, workers int) error {
	var gaps []int
	for row := 0; row < m.Rows(); row++ {
		if m.rowAllUnknown(row) {
			gaps = append(gaps, row)
		}
	}
	if len(gaps) == 0 {
		return nil
	}
	zap.L().Debug("recomputing observations outside every region buffer",
		zap.String("component", "regional.distance"),
		zap.Int("rows", len(gaps)),
	)
	return runIndexed(ctx, workers, len(gaps), func(_ context.Context, i int) error {
		row := gaps[i]
		c := obs.Coords[row]
		for col := range regions.Regions {
			m.set(row, col, boundaryDistance(regions.Regions[col].Geom, c)*kmPerDeg)
		}
		return nil
	})
}

// maxCutoff returns the largest cutoff any region will use.
func maxCutoff(p Param, regions *RegionSet) float64 {
	max := 0.0
	for _, r := range regions.Regions {
		if v := p.For(r.ID); v > max {
			max = v
		}
	}
	return max
}
