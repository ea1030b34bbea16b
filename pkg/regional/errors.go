package regional

import "github.com/rotisserie/eris"

// Sentinel errors for structural and parameter failures. All of them are
// fatal and surfaced before any computation begins, except ErrAllModelsFailed
// which is raised only after every region's fit has failed. Callers test with
// eris.Is.
var (
	// ErrInvalidGeometry is returned when a region record is not polygonal.
	ErrInvalidGeometry = eris.New("regional: invalid geometry")

	// ErrMissingColumn is returned when a named identifier field does not
	// exist in the input records.
	ErrMissingColumn = eris.New("regional: missing column")

	// ErrGeometryMismatch is returned when observations and regions do not
	// share a spatial reference system, or when a supplied distance matrix
	// does not line up with its observations or regions.
	ErrGeometryMismatch = eris.New("regional: geometry mismatch")

	// ErrInvalidParameter is returned for negative or NaN distance
	// parameters, min_n < 1, or min_n exceeding the observation count.
	ErrInvalidParameter = eris.New("regional: invalid parameter")

	// ErrEmptyRegions is returned when no regions are supplied.
	ErrEmptyRegions = eris.New("regional: no regions")

	// ErrAllModelsFailed is returned by FitEnsemble when every region's fit
	// failed. Individual fit failures are reported as warnings and skipped.
	ErrAllModelsFailed = eris.New("regional: all models failed")
)
