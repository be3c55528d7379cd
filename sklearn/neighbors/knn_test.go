package neighbors

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

func line() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 2, 2, 2})
	return X, y
}

func TestKNeighbors_DistancesAndOrder(t *testing.T) {
	X, y := line()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	dist, idx, err := knn.KNeighbors([]float64{1.4}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, idx)
	assert.InDeltaSlice(t, []float64{0.4, 0.6, 1.4}, dist, 1e-12)

	// 等距離は学習順
	_, idx, err = knn.KNeighbors([]float64{1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, idx)
}

func TestKNeighbors_Euclidean2D(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{0, 0, 3, 4, 6, 8})
	y := mat.NewDense(3, 1, []float64{0, 1, 1})
	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))

	dist, idx, err := knn.KNeighbors([]float64{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx)
	assert.InDeltaSlice(t, []float64{0, 5, 10}, dist, 1e-12)
	assert.Equal(t, []float64{3, 4}, knn.TrainRow(1))
	assert.Equal(t, 1, knn.TrainLabel(2))
}

func TestKNeighborsClassifier_PredictAndProba(t *testing.T) {
	X, y := line()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	score, err := knn.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	proba, err := knn.PredictProbaK(mat.NewDense(1, 1, []float64{5}), 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.4, proba.At(0, 1), 1e-12)
	assert.Equal(t, []int{0, 2}, knn.Classes())
}

func TestKNeighborsClassifier_TieGoesToSmallestLabel(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 2})
	y := mat.NewDense(2, 1, []float64{1, 0})
	knn := NewKNeighborsClassifier(WithNNeighbors(2))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{1}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
}

func TestKNeighborsClassifier_ParallelMatchesSequential(t *testing.T) {
	n := 600
	data := make([]float64, n*2)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		data[2*i] = float64(i % 37)
		data[2*i+1] = float64(i % 11)
		labels[i] = float64(i % 3)
	}
	X := mat.NewDense(n, 2, data)
	y := mat.NewDense(n, 1, labels)

	seq := NewKNeighborsClassifier(WithParallelThreshold(n + 1))
	par := NewKNeighborsClassifier(WithParallelThreshold(1))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	d1, i1, err := seq.KNeighbors([]float64{4.5, 3.2}, 7)
	require.NoError(t, err)
	d2, i2, err := par.KNeighbors([]float64{4.5, 3.2}, 7)
	require.NoError(t, err)
	assert.Equal(t, i1, i2)
	assert.Equal(t, d1, d2)
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	knn := NewKNeighborsClassifier()
	_, _, err := knn.KNeighbors([]float64{1}, 1)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := line()
	// k=5 は6件で可、k=7 は不可
	require.NoError(t, knn.Fit(X, y))
	_, _, err = knn.KNeighbors([]float64{1}, 7)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "k", ve.ParamName)

	_, _, err = knn.KNeighbors([]float64{1, 2}, 3)
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	assert.Error(t, NewKNeighborsClassifier(WithNNeighbors(10)).Fit(X, y))
}

func TestKNeighborsClassifier_GobRoundTrip(t *testing.T) {
	X, y := line()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(knn, &buf))
	loaded := &KNeighborsClassifier{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	dist, idx, err := loaded.KNeighbors([]float64{11.2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, idx)
	assert.InDeltaSlice(t, []float64{0.2, 0.8}, dist, 1e-12)
	assert.Equal(t, 3, loaded.NNeighbors)
}
