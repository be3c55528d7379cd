package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// ClassLabels converts the n×1 label column y into integer labels and returns
// the sorted unique classes. Non-integral labels are rejected.
func ClassLabels(op string, y mat.Matrix) (labels []int, classes []int, err error) {
	r, c := y.Dims()
	if c != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	labels = make([]int, r)
	seen := make(map[int]bool)
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if v != math.Trunc(v) || math.IsNaN(v) {
			return nil, nil, errors.NewValidationError("y", "class labels must be integers", v)
		}
		labels[i] = int(v)
		seen[labels[i]] = true
	}
	classes = make([]int, 0, len(seen))
	for cls := range seen {
		classes = append(classes, cls)
	}
	sort.Ints(classes)
	return labels, classes, nil
}

// ClassIndex maps each class to its position in classes.
func ClassIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// ArgmaxRows returns, for each row of proba, the class with the highest
// probability. Ties go to the lower index.
func ArgmaxRows(proba mat.Matrix, classes []int) *mat.VecDense {
	r, c := proba.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.SetVec(i, float64(classes[best]))
	}
	return out
}

// RowSlice copies row i of X into a new slice.
func RowSlice(X mat.Matrix, i int) []float64 {
	_, c := X.Dims()
	row := make([]float64, c)
	for j := 0; j < c; j++ {
		row[j] = X.At(i, j)
	}
	return row
}
