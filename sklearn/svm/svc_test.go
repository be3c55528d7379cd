package svm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// threeBlobs は各クラス10点の十分に離れたクラスタ
func threeBlobs() (*mat.Dense, *mat.Dense) {
	centers := [][2]float64{{0, 0}, {6, 6}, {12, 0}}
	offsets := [][2]float64{
		{0, 0}, {0.3, 0.1}, {-0.2, 0.4}, {0.5, -0.3}, {-0.4, -0.2},
		{0.1, 0.5}, {-0.5, 0.2}, {0.2, -0.5}, {0.4, 0.4}, {-0.3, -0.4},
	}
	var data, labels []float64
	for c, ctr := range centers {
		for _, o := range offsets {
			data = append(data, ctr[0]+o[0], ctr[1]+o[1])
			labels = append(labels, float64(c))
		}
	}
	return mat.NewDense(len(labels), 2, data), mat.NewDense(len(labels), 1, labels)
}

func TestSVC_SeparatesClusters(t *testing.T) {
	X, y := threeBlobs()
	svc := NewSVC(WithRandomState(42))
	require.NoError(t, svc.Fit(X, y))

	score, err := svc.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	pred, err := svc.Predict(mat.NewDense(3, 2, []float64{0.2, 0.1, 6.1, 5.8, 11.7, 0.3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, pred.(*mat.VecDense).RawVector().Data)
	assert.Len(t, svc.Pairs, 3)
	assert.Equal(t, []int{0, 1, 2}, svc.Classes())
}

func TestSVC_GammaScale(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 2, 2})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	svc := NewSVC(WithProbability(false))
	require.NoError(t, svc.Fit(X, y))
	// var = 1, n_features = 1
	assert.InDelta(t, 1.0, svc.GammaValue, 1e-12)

	svc = NewSVC(WithGamma(GammaAuto), WithProbability(false))
	require.NoError(t, svc.Fit(mat.NewDense(2, 4, []float64{0, 0, 0, 0, 1, 1, 1, 1}), mat.NewDense(2, 1, []float64{0, 1})))
	assert.InDelta(t, 0.25, svc.GammaValue, 1e-12)
}

func TestSVC_SupportVectors(t *testing.T) {
	X, y := threeBlobs()
	svc := NewSVC(WithProbability(false))
	require.NoError(t, svc.Fit(X, y))

	n := svc.SupportVectorCount()
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 30)
	total := 0
	for _, c := range svc.NSupport {
		total += c
	}
	assert.Equal(t, n, total)
	assert.Len(t, svc.SupportVectors, n)
}

func TestSVC_DecisionFunctionOVR(t *testing.T) {
	X, y := threeBlobs()
	svc := NewSVC(WithProbability(false))
	require.NoError(t, svc.Fit(X, y))

	dec, err := svc.DecisionFunction(X)
	require.NoError(t, err)
	r, c := dec.Dims()
	require.Equal(t, 30, r)
	require.Equal(t, 3, c)

	pred, err := svc.Predict(X)
	require.NoError(t, err)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, dec)
		assert.Equal(t, int(pred.At(i, 0)), floats.MaxIdx(row))
		// 投票数 + (-1/3, 1/3) の信頼度
		assert.InDelta(t, 2.0, floats.Max(row), 1.0/3)
	}
}

func TestSVC_BinaryDecisionFunctionSign(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 0.5, 1, 5, 5.5, 6})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	svc := NewSVC(WithProbability(false))
	require.NoError(t, svc.Fit(X, y))

	dec, err := svc.DecisionFunction(mat.NewDense(2, 1, []float64{0.2, 5.8}))
	require.NoError(t, err)
	_, c := dec.Dims()
	assert.Equal(t, 1, c)
	assert.Less(t, dec.At(0, 0), 0.0)
	assert.Greater(t, dec.At(1, 0), 0.0)
}

func TestSVC_PredictProba(t *testing.T) {
	X, y := threeBlobs()
	svc := NewSVC(WithRandomState(42))
	require.NoError(t, svc.Fit(X, y))

	proba, err := svc.PredictProba(mat.NewDense(3, 2, []float64{0, 0, 6, 6, 12, 0}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-6)
		assert.Equal(t, i, floats.MaxIdx(row))
		for _, p := range row {
			assert.True(t, p >= 0 && p <= 1)
		}
	}
}

func TestSVC_Errors(t *testing.T) {
	svc := NewSVC()
	var nf *errors.NotFittedError
	_, err := svc.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.As(err, &nf))

	X, y := threeBlobs()
	noProba := NewSVC(WithProbability(false))
	require.NoError(t, noProba.Fit(X, y))
	_, err = noProba.PredictProba(X)
	assert.Error(t, err)

	assert.Error(t, NewSVC().Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 1})))
	assert.Error(t, NewSVC(WithC(0)).Fit(X, y))
	assert.Error(t, NewSVC(WithGammaValue(-1)).Fit(X, y))
	assert.Error(t, NewSVC(WithGamma("poly")).Fit(X, y))
}

func TestSVC_GobRoundTrip(t *testing.T) {
	X, y := threeBlobs()
	svc := NewSVC(WithRandomState(42))
	require.NoError(t, svc.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(svc, &buf))
	loaded := &SVC{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))

	want, err := svc.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
	assert.Equal(t, svc.SupportVectorCount(), loaded.SupportVectorCount())
}

func TestCoupleProbabilities(t *testing.T) {
	r := [][]float64{
		{0, 0.5, 0.5},
		{0.5, 0, 0.5},
		{0.5, 0.5, 0},
	}
	p := coupleProbabilities(r)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, p, 1e-6)

	p = coupleProbabilities([][]float64{{0, 0.8}, {0.2, 0}})
	assert.Equal(t, []float64{0.8, 0.2}, p)

	r = [][]float64{
		{0, 0.9, 0.9},
		{0.1, 0, 0.5},
		{0.1, 0.5, 0},
	}
	p = coupleProbabilities(r)
	assert.InDelta(t, 1.0, floats.Sum(p), 1e-6)
	assert.Equal(t, 0, floats.MaxIdx(p))
}

func TestSigmoidTrain(t *testing.T) {
	dec := []float64{-3, -2, -1.5, -1, 1, 1.5, 2, 3}
	y := []float64{-1, -1, -1, -1, 1, 1, 1, 1}
	a, b := sigmoidTrain(dec, y)

	// 正の決定値ほど P(+1) が高い
	assert.Less(t, a, 0.0)
	assert.Greater(t, sigmoidPredict(3, a, b), 0.5)
	assert.Less(t, sigmoidPredict(-3, a, b), 0.5)
	assert.InDelta(t, 0.5, sigmoidPredict(0, a, b), 0.1)
}
