package linear

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// createData は y = 1 + 0.5*x0 + 1.0*x1 + ... の線形データを生成する
func createData(rows, cols int, noise float64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			v := rng.Float64()*2.0 - 1.0
			X.Set(i, j, v)
			sum += v * float64(j+1) * 0.5
		}
		sum += (rng.Float64() - 0.5) * noise
		y.Set(i, 0, sum)
	}
	return X, y
}

func TestLinearRegression_ExactFit(t *testing.T) {
	X, y := createData(50, 3, 0)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 1.0, lr.GetIntercept(), 1e-9)
	for j, w := range lr.GetWeights() {
		assert.InDelta(t, float64(j+1)*0.5, w, 1e-9)
	}

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	pred, err := lr.Predict(mat.NewDense(1, 3, []float64{0, 0, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 1e-9)
}

func TestLinearRegression_WithoutIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 0.0, lr.Intercept)
	assert.InDelta(t, 2.0, lr.Coef[0], 1e-12)
}

func TestLinearRegression_ParallelMatchesSequential(t *testing.T) {
	X, y := createData(300, 4, 0.1)

	seq := NewLinearRegression()
	par := NewLinearRegression(WithParallelThreshold(10))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	assert.InDeltaSlice(t, seq.Coef, par.Coef, 1e-12)
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = lr.Fit(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = lr.Fit(mat.NewDense(3, 2, nil), mat.NewDense(3, 2, nil))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	X, y := createData(10, 2, 0)
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(1, 5, nil))
	assert.True(t, errors.As(err, &dimErr))
}

func TestLinearRegression_Persistence(t *testing.T) {
	X, y := createData(20, 2, 0.05)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(lr, &buf))
	loaded := &LinearRegression{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	want, err := lr.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
}

func TestLinearRegression_WeightsRoundTrip(t *testing.T) {
	X, y := createData(20, 2, 0)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w, err := lr.ExportWeights([]string{"G1", "G2"})
	require.NoError(t, err)
	data, err := w.ToJSON()
	require.NoError(t, err)

	var decoded model.ModelWeights
	require.NoError(t, decoded.FromJSON(data))

	restored := NewLinearRegression()
	require.NoError(t, restored.ImportWeights(&decoded))
	assert.InDeltaSlice(t, lr.Coef, restored.Coef, 1e-12)
	assert.InDelta(t, lr.Intercept, restored.Intercept, 1e-12)

	_, err = NewLinearRegression().ExportWeights(nil)
	assert.Error(t, err)
}

func BenchmarkLinearRegressionFit(b *testing.B) {
	sizes := []struct {
		name       string
		rows, cols int
	}{
		{"Students_395x15", 395, 15},
		{"Medium_2000x15", 2000, 15},
	}
	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createData(size.rows, size.cols, 0.1)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := NewLinearRegression().Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
