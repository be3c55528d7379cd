package tree

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func threeClass() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		5, 5, 5, 6, 6, 5,
		10, 0, 10, 1, 11, 0,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X, y := blobs()
	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0), "sample %d", i)
	}

	test := mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5})
	pred, err = dt.Predict(test)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
	assert.Equal(t, []int{0, 1}, dt.Classes())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := threeClass()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 9, r)
	require.Equal(t, 3, c)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			p := proba.At(i, j)
			assert.True(t, p >= 0 && p <= 1)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-10)
		assert.Equal(t, 1.0, proba.At(i, int(y.At(i, 0))))
	}
}

func TestDecisionTreeClassifier_XOR(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 1, 0, 1, 1})
	y := mat.NewDense(4, 1, []float64{0, 1, 1, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, 2, dt.GetDepth())
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X, y := threeClass()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.InDelta(t, math.Log2(3), dt.Nodes[0].Impurity, 1e-12)
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	// 2列目は定数なので重要度は 0
	X := mat.NewDense(6, 2, []float64{1, 7, 2, 7, 3, 7, 10, 7, 11, 7, 12, 7})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.Equal(t, 0.0, imp[1])
	assert.InDelta(t, 6.5, dt.Nodes[0].Threshold, 1e-12)
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetDepth(), 2)
	assert.LessOrEqual(t, dt.GetNLeaves(), 4)
}

func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	y := mat.NewDense(10, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1})

	dt := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))

	for _, n := range dt.Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 2)
		} else {
			assert.GreaterOrEqual(t, n.NSamples, 5)
		}
	}
	assert.Greater(t, dt.GetNLeaves(), 1)
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 1, params["min_samples_leaf"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	}))
	assert.Equal(t, "entropy", dt.Criterion)
	assert.Equal(t, 5, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)
	assert.Equal(t, 2, dt.MinSamplesLeaf)

	assert.Error(t, dt.SetParams(map[string]interface{}{"splitter": "random"}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"criterion": "mse"}))
	assert.Error(t, dt.SetParams(map[string]interface{}{"max_depth": "deep"}))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(1, 2, []float64{1, 2})

	var nf *errors.NotFittedError
	_, err := dt.Predict(X)
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
	_, err = dt.DecisionPath([]float64{1, 2})
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeClassifier_FeatureMismatch(t *testing.T) {
	X, y := blobs()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	_, err := dt.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDecisionTreeClassifier_DecisionPath(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{1, 7, 2, 7, 3, 7, 10, 7, 11, 7, 12, 7})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	steps, err := dt.DecisionPath([]float64{2.5, 7})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 0, steps[0].Feature)
	assert.Equal(t, 2.5, steps[0].Value)
	assert.True(t, steps[0].Left)
	assert.Equal(t, "absences <= 6.50", steps[0].Condition("absences"))

	steps, err = dt.DecisionPath([]float64{11, 7})
	require.NoError(t, err)
	assert.Equal(t, "absences > 6.50", steps[0].Condition("absences"))
}

func TestDecisionTreeClassifier_ExportText(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{1, 7, 2, 7, 3, 7, 10, 7, 11, 7, 12, 7})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	text, err := dt.ExportText([]string{"G1", "G2"}, []string{"At-Risk", "Good"})
	require.NoError(t, err)
	want := strings.Join([]string{
		"|--- G1 <= 6.50",
		"|   |--- class: At-Risk",
		"|--- G1 >  6.50",
		"|   |--- class: Good",
		"",
	}, "\n")
	assert.Equal(t, want, text)

	_, err = dt.ExportText([]string{"only-one"}, nil)
	assert.Error(t, err)
}

func TestDecisionTreeClassifier_GobRoundTrip(t *testing.T) {
	X, y := threeClass()
	dt := NewDecisionTreeClassifier(WithMaxDepth(4), WithRandomState(42))
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(dt, &buf))

	loaded := &DecisionTreeClassifier{}
	require.NoError(t, model.LoadModelFromReader(loaded, &buf))
	assert.True(t, loaded.IsFitted())

	want, err := dt.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestDecisionTreeClassifier_InvalidInput(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	assert.Error(t, dt.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(3, 1, []float64{0, 1, 0})))
	assert.Error(t, dt.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{0, 0.5})))
	assert.Error(t, NewDecisionTreeClassifier(WithCriterion("mse")).Fit(blobs()))
}
