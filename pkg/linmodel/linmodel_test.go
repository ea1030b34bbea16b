package linmodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/mosaic/pkg/regional"
)

func frame(x, y []float64) *regional.Observations {
	obs := &regional.Observations{
		Fields: map[string][]float64{"x": x, "y": y},
	}
	for range x {
		obs.Coords = append(obs.Coords, geom.Coord{0, 0})
	}
	return obs
}

func TestFit_RecoversExactLine(t *testing.T) {
	// y = 3 + 2x with no noise.
	x := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3 + 2*v
	}

	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	m, err := tr.Fit(context.Background(), frame(x, y))
	require.NoError(t, err)

	lm := m.(*Model)
	coef := lm.Coefficients()
	assert.InDelta(t, 3, coef[0], 1e-9)
	assert.InDelta(t, 2, coef[1], 1e-9)
	assert.Equal(t, 6, lm.TrainingRows())

	preds, err := m.Predict(context.Background(), frame([]float64{10}, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 23, preds[0], 1e-9)
}

func TestFit_NoIntercept(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}

	tr := &Trainer{Response: "y", Features: []string{"x"}}
	m, err := tr.Fit(context.Background(), frame(x, y))
	require.NoError(t, err)

	coef := m.(*Model).Coefficients()
	require.Len(t, coef, 1)
	assert.InDelta(t, 2, coef[0], 1e-9)
}

func TestFit_TooFewRows(t *testing.T) {
	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	_, err := tr.Fit(context.Background(), frame([]float64{1}, []float64{2}))
	assert.Error(t, err)
}

func TestFit_MissingColumns(t *testing.T) {
	tr := &Trainer{Response: "z", Features: []string{"x"}, Intercept: true}
	_, err := tr.Fit(context.Background(), frame([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.Error(t, err)

	tr = &Trainer{Response: "y", Features: []string{"missing"}, Intercept: true}
	_, err = tr.Fit(context.Background(), frame([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.Error(t, err)
}

func TestFit_SingularDesign(t *testing.T) {
	// A constant feature plus an intercept is perfectly collinear.
	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	_, err := tr.Fit(context.Background(), frame([]float64{5, 5, 5, 5}, []float64{1, 2, 3, 4}))
	assert.Error(t, err)
}

func TestPredictStderr(t *testing.T) {
	// Noisy line: residual variance is positive, so prediction standard
	// errors must be positive and grow away from the center of the data.
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{0.1, 0.9, 2.2, 2.8, 4.1, 5.2, 5.8, 7.3, 7.9}

	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	m, err := tr.Fit(context.Background(), frame(x, y))
	require.NoError(t, err)

	um := m.(regional.UncertaintyModel)
	se, err := um.PredictStderr(context.Background(), frame([]float64{4, 20}, []float64{0, 0}))
	require.NoError(t, err)

	assert.Greater(t, se[0], 0.0)
	assert.Greater(t, se[1], se[0]) // far extrapolation is less certain
}

func TestPredict_EmptyInput(t *testing.T) {
	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	m, err := tr.Fit(context.Background(), frame([]float64{1, 2, 3}, []float64{1, 2, 3}))
	require.NoError(t, err)

	out, err := m.Predict(context.Background(), frame(nil, nil))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFit_SatisfiesFitFunc(t *testing.T) {
	tr := &Trainer{Response: "y", Features: []string{"x"}, Intercept: true}
	var _ regional.FitFunc = tr.Fit
}
