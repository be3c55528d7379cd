// Package neighbors provides a brute-force k-nearest-neighbours classifier.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/core/parallel"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// KNeighborsClassifier votes among the k closest training samples under the
// Euclidean distance. All neighbours carry the same weight.
type KNeighborsClassifier struct {
	State *model.StateManager

	NNeighbors int

	// 学習データ（行優先）
	XTrain []float64
	YTrain []int
	Labels []int

	parallelThreshold int
}

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets the default number of neighbours.
func WithNNeighbors(k int) Option {
	return func(knn *KNeighborsClassifier) { knn.NNeighbors = k }
}

// WithParallelThreshold sets the training-set size above which distances are
// computed in parallel.
func WithParallelThreshold(rows int) Option {
	return func(knn *KNeighborsClassifier) { knn.parallelThreshold = rows }
}

var (
	_ model.Classifier      = (*KNeighborsClassifier)(nil)
	_ model.ParameterGetter = (*KNeighborsClassifier)(nil)
)

// NewKNeighborsClassifier creates a classifier with k=5.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		State:             model.NewStateManager(),
		NNeighbors:        5,
		parallelThreshold: parallel.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// IsFitted reports whether Fit has completed.
func (knn *KNeighborsClassifier) IsFitted() bool {
	return knn.State.IsFitted()
}

// Classes returns the sorted class labels seen during fitting.
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.Labels...)
}

// Fit stores the training set.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("KNeighborsClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", r, ry, 0)
	}
	if knn.NNeighbors < 1 || knn.NNeighbors > r {
		return errors.NewValidationError("n_neighbors", fmt.Sprintf("must be within [1, %d]", r), knn.NNeighbors)
	}
	labels, classes, err := model.ClassLabels("KNeighborsClassifier.Fit", y)
	if err != nil {
		return err
	}

	knn.XTrain = make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		knn.XTrain = append(knn.XTrain, model.RowSlice(X, i)...)
	}
	knn.YTrain = labels
	knn.Labels = classes

	if knn.State == nil {
		knn.State = model.NewStateManager()
	}
	knn.State.SetDimensions(c, r)
	knn.State.SetFitted()
	return nil
}

// NTrain returns the number of stored training samples.
func (knn *KNeighborsClassifier) NTrain() int {
	return len(knn.YTrain)
}

// TrainRow returns a copy of training sample i.
func (knn *KNeighborsClassifier) TrainRow(i int) []float64 {
	c, _ := knn.State.GetDimensions()
	return append([]float64(nil), knn.XTrain[i*c:(i+1)*c]...)
}

// TrainLabel returns the label of training sample i.
func (knn *KNeighborsClassifier) TrainLabel(i int) int {
	return knn.YTrain[i]
}

// KNeighbors returns the distances to and indices of the k training samples
// closest to x, nearest first. Equal distances keep training order.
func (knn *KNeighborsClassifier) KNeighbors(x []float64, k int) (distances []float64, indices []int, err error) {
	if err := knn.State.RequireFitted("KNeighborsClassifier", "KNeighbors"); err != nil {
		return nil, nil, err
	}
	if err := knn.State.RequireFeatures("KNeighborsClassifier.KNeighbors", len(x)); err != nil {
		return nil, nil, err
	}
	n := knn.NTrain()
	if k < 1 || k > n {
		return nil, nil, errors.NewValidationError("k", fmt.Sprintf("must be within [1, %d]", n), k)
	}

	// gob から復元したモデルは閾値を持たない
	threshold := knn.parallelThreshold
	if threshold <= 0 {
		threshold = parallel.DefaultThreshold
	}

	c := len(x)
	all := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			all[i] = floats.Distance(x, knn.XTrain[i*c:(i+1)*c], 2)
		}
	})

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return all[order[a]] < all[order[b]] })

	indices = order[:k]
	distances = make([]float64, k)
	for i, idx := range indices {
		distances[i] = all[idx]
	}
	return distances, indices, nil
}

// vote returns the class shares among the given neighbours.
func (knn *KNeighborsClassifier) vote(indices []int) []float64 {
	index := model.ClassIndex(knn.Labels)
	share := make([]float64, len(knn.Labels))
	for _, idx := range indices {
		share[index[knn.YTrain[idx]]]++
	}
	floats.Scale(1/float64(len(indices)), share)
	return share
}

// PredictProbaK returns the neighbour vote shares for each row using k
// neighbours.
func (knn *KNeighborsClassifier) PredictProbaK(X mat.Matrix, k int) (mat.Matrix, error) {
	if err := knn.State.RequireFitted("KNeighborsClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	proba := mat.NewDense(r, len(knn.Labels), nil)
	for i := 0; i < r; i++ {
		_, idx, err := knn.KNeighbors(model.RowSlice(X, i), k)
		if err != nil {
			return nil, err
		}
		proba.SetRow(i, knn.vote(idx))
	}
	return proba, nil
}

// PredictProba returns the neighbour vote shares using NNeighbors.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return knn.PredictProbaK(X, knn.NNeighbors)
}

// Predict returns the majority class among the neighbours. Ties go to the
// smallest label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxRows(proba, knn.Labels), nil
}

// Score returns the mean accuracy on X and y.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := knn.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, pred.(*mat.VecDense))
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.NNeighbors,
		"metric":      "euclidean",
		"weights":     "uniform",
	}
}

// String returns a short description of the classifier.
func (knn *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d)", knn.NNeighbors)
}
