package preprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Scale[0], 1e-12)
	// constant column keeps unit scale
	assert.Equal(t, 1.0, s.Scale[1])

	col := mat.Col(nil, 0, out)
	assert.InDelta(t, 0, col[0]+col[1]+col[2]+col[3], 1e-12)
	assert.Equal(t, 0.0, out.At(2, 1))

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScaler_AsTransformer(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 4, 6})
	var tr model.Transformer = NewStandardScalerDefault()

	_, err := tr.Transform(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, tr.Fit(X))
	out, err := tr.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.At(1, 0), 1e-12)

	back, err := tr.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()
	_, err := s.Transform(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestStandardScaler_GobRoundTrip(t *testing.T) {
	s := NewStandardScalerDefault()
	require.NoError(t, s.Fit(mat.NewDense(3, 1, []float64{0, 5, 10})))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(s, &buf))
	loaded := &StandardScaler{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	out, err := loaded.Transform(mat.NewDense(1, 1, []float64{5}))
	require.NoError(t, err)
	assert.InDelta(t, 0, out.At(0, 0), 1e-12)
}

func TestLabelEncoder(t *testing.T) {
	e := NewLabelEncoder()
	codes, err := e.FitTransform([]string{"Good", "At-Risk", "Average", "Good"})
	require.NoError(t, err)

	assert.Equal(t, []string{"At-Risk", "Average", "Good"}, e.Classes)
	assert.Equal(t, []int{2, 0, 1, 2}, codes)
	assert.Equal(t, "Average", e.Label(1))
	assert.Equal(t, "", e.Label(7))

	labels, err := e.InverseTransform([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"At-Risk", "Good"}, labels)

	_, err = e.Transform([]string{"Excellent"})
	assert.Error(t, err)
	_, err = e.InverseTransform([]int{3})
	assert.Error(t, err)
}

func TestLabelEncoder_GobRoundTrip(t *testing.T) {
	e := NewLabelEncoder()
	require.NoError(t, e.Fit([]string{"b", "a"}))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(e, &buf))
	loaded := &LabelEncoder{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	codes, err := loaded.Transform([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, codes)
}

func sequentialMatrix(n int) *mat.Dense {
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*i))
	}
	return X
}

func TestTrainTestSplit(t *testing.T) {
	X := sequentialMatrix(10)
	y := make([]float64, 10)
	for i := range y {
		y[i] = float64(i)
	}

	s1, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	s2, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)

	trainRows, _ := s1.XTrain.Dims()
	testRows, _ := s1.XTest.Dims()
	assert.Equal(t, 8, trainRows)
	assert.Equal(t, 2, testRows)
	assert.True(t, mat.Equal(s1.XTest, s2.XTest), "same seed gives same split")

	// rows stay aligned with targets
	for i := 0; i < trainRows; i++ {
		assert.Equal(t, s1.XTrain.At(i, 0), s1.YTrain.AtVec(i))
	}

	seen := map[float64]bool{}
	for i := 0; i < trainRows; i++ {
		seen[s1.YTrain.AtVec(i)] = true
	}
	for i := 0; i < testRows; i++ {
		seen[s1.YTest.AtVec(i)] = true
	}
	assert.Len(t, seen, 10)
}

func TestStratifiedSplit_PreservesProportions(t *testing.T) {
	n := 50
	X := sequentialMatrix(n)
	y := make([]int, n)
	for i := range y {
		switch {
		case i < 10:
			y[i] = 0
		case i < 30:
			y[i] = 1
		default:
			y[i] = 2
		}
	}

	s, err := StratifiedSplit(X, y, 0.2, 42)
	require.NoError(t, err)

	counts := map[float64]int{}
	for i := 0; i < s.YTest.Len(); i++ {
		counts[s.YTest.AtVec(i)]++
	}
	assert.Equal(t, map[float64]int{0: 2, 1: 4, 2: 4}, counts)
	assert.Equal(t, 40, s.YTrain.Len())
}

func TestSplit_InvalidArgs(t *testing.T) {
	X := sequentialMatrix(4)
	_, err := TrainTestSplit(X, []float64{1, 2, 3}, 0.2, 1)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = StratifiedSplit(X, []int{0, 1, 0, 1}, 1.5, 1)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}
