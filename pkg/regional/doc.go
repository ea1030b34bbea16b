// Package regional fits independent statistical models over a partitioned
// spatial domain and composes their outputs into a single prediction surface
// that stays continuous across region borders.
//
// The package exposes three operations: BuildDistanceMatrix computes
// point-to-region-boundary distances, FitEnsemble selects per-region training
// sets and invokes a caller-supplied fit capability, and Ensemble.Predict
// blends per-region predictions with a bounded quadratic decay weight keyed
// to boundary distance. Model fitting itself is pluggable: any FitFunc that
// returns a Model works, and regional never inspects what a Model is.
package regional
