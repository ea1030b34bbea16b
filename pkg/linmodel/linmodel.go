// Package linmodel provides an ordinary-least-squares model family for use
// with regional.FitEnsemble. It is the reference fit capability used by the
// CLI and the prediction server; callers with richer model families supply
// their own regional.FitFunc instead.
package linmodel

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/mosaic/pkg/regional"
)

// Trainer fits a linear model of Response on Features by ordinary least
// squares. Its Fit method satisfies regional.FitFunc.
type Trainer struct {
	Response  string
	Features  []string
	Intercept bool
}

// Model is a fitted linear model. It implements regional.Model and
// regional.UncertaintyModel.
type Model struct {
	features  []string
	intercept bool
	coef      *mat.VecDense
	cov       *mat.Dense // sigma² (XᵀX)⁻¹, for prediction standard errors
	sigma2    float64
	n         int
}

// Fit solves the least-squares problem over the training subset. It fails
// when the subset is smaller than the coefficient count, when a named column
// is absent, or when the design matrix is singular.
func (t *Trainer) Fit(_ context.Context, training *regional.Observations) (regional.Model, error) {
	if t.Response == "" || len(t.Features) == 0 {
		return nil, eris.New("linmodel: response and features are required")
	}
	y, ok := training.Fields[t.Response]
	if !ok {
		return nil, eris.Errorf("linmodel: response column %q not found", t.Response)
	}

	n := training.Len()
	p := len(t.Features)
	if t.Intercept {
		p++
	}
	if n < p {
		return nil, eris.Errorf("linmodel: %d rows for %d coefficients", n, p)
	}

	x, err := designMatrix(training, t.Features, t.Intercept)
	if err != nil {
		return nil, err
	}
	yv := mat.NewVecDense(n, append([]float64(nil), y...))

	var coef mat.VecDense
	if err := coef.SolveVec(x, yv); err != nil {
		return nil, eris.Wrap(err, "linmodel: solve least squares")
	}

	// Residual variance and coefficient covariance for standard errors.
	var fitted mat.VecDense
	fitted.MulVec(x, &coef)
	rss := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
	}
	sigma2 := 0.0
	if n > p {
		sigma2 = rss / float64(n-p)
	}

	var xtx, inv mat.Dense
	xtx.Mul(x.T(), x)
	if err := inv.Inverse(&xtx); err != nil {
		return nil, eris.Wrap(err, "linmodel: singular design matrix")
	}
	inv.Scale(sigma2, &inv)

	return &Model{
		features:  append([]string(nil), t.Features...),
		intercept: t.Intercept,
		coef:      &coef,
		cov:       &inv,
		sigma2:    sigma2,
		n:         n,
	}, nil
}

// Predict returns the fitted value for each row.
func (m *Model) Predict(_ context.Context, obs *regional.Observations) ([]float64, error) {
	if obs.Len() == 0 {
		return nil, nil
	}
	x, err := designMatrix(obs, m.features, m.intercept)
	if err != nil {
		return nil, err
	}
	var out mat.VecDense
	out.MulVec(x, m.coef)
	vals := make([]float64, obs.Len())
	for i := range vals {
		vals[i] = out.AtVec(i)
	}
	return vals, nil
}

// PredictStderr returns the standard error of the mean prediction for each
// row, sqrt(xᵀ · cov · x).
func (m *Model) PredictStderr(_ context.Context, obs *regional.Observations) ([]float64, error) {
	if obs.Len() == 0 {
		return nil, nil
	}
	x, err := designMatrix(obs, m.features, m.intercept)
	if err != nil {
		return nil, err
	}
	_, p := x.Dims()
	out := make([]float64, obs.Len())
	row := mat.NewVecDense(p, nil)
	var tmp mat.VecDense
	for i := range out {
		for j := 0; j < p; j++ {
			row.SetVec(j, x.At(i, j))
		}
		tmp.MulVec(m.cov, row)
		out[i] = math.Sqrt(mat.Dot(row, &tmp))
	}
	return out, nil
}

// Coefficients returns the fitted coefficients, intercept first when present.
func (m *Model) Coefficients() []float64 {
	out := make([]float64, m.coef.Len())
	for i := range out {
		out[i] = m.coef.AtVec(i)
	}
	return out
}

// TrainingRows returns the size of the training subset the model saw.
func (m *Model) TrainingRows() int { return m.n }

// designMatrix assembles the feature columns, with a leading column of ones
// when intercept is set.
func designMatrix(obs *regional.Observations, features []string, intercept bool) (*mat.Dense, error) {
	n := obs.Len()
	p := len(features)
	offset := 0
	if intercept {
		p++
		offset = 1
	}
	x := mat.NewDense(n, p, nil)
	if intercept {
		for i := 0; i < n; i++ {
			x.Set(i, 0, 1)
		}
	}
	for j, name := range features {
		col, ok := obs.Fields[name]
		if !ok {
			return nil, eris.Errorf("linmodel: feature column %q not found", name)
		}
		for i := 0; i < n; i++ {
			x.Set(i, j+offset, col[i])
		}
	}
	return x, nil
}
