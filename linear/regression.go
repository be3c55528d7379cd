// Package linear は最小二乗法による線形回帰を提供する
package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/core/parallel"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	State *model.StateManager

	// Coef は特徴量ごとの係数
	Coef []float64
	// Intercept は切片
	Intercept float64
	// FitIntercept は切片を学習するかどうか（デフォルト: true）
	FitIntercept bool

	parallelThreshold int
}

var (
	_ model.Regressor       = (*LinearRegression)(nil)
	_ model.LinearModel     = (*LinearRegression)(nil)
	_ model.ParameterGetter = (*LinearRegression)(nil)
)

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:             model.NewStateManager(),
		FitIntercept:      true,
		parallelThreshold: parallel.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// IsFitted は学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

// Fit はモデルを訓練データで学習させる
// 最小二乗問題 min ||Xw - y||² をQR分解で解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	offset := 0
	if lr.FitIntercept {
		offset = 1
	}
	if r < c+offset {
		return errors.NewValueError("LinearRegression.Fit", fmt.Sprintf("need at least %d samples, got %d", c+offset, r))
	}

	// 切片項のために X の先頭に 1 の列を追加
	design := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, lr.parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	target := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		target.Set(i, 0, y.At(i, 0))
	}

	var w mat.Dense
	if err := w.Solve(design, target); err != nil {
		// 条件数の警告は解が得られているので許容する
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
		}
	}

	lr.Intercept = 0
	if offset == 1 {
		lr.Intercept = w.At(0, 0)
	}
	lr.Coef = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Coef[j] = w.At(j+offset, 0)
	}

	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
// y = X * coef + intercept
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	predictions := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Coef[j]
		}
		predictions.SetVec(i, pred)
	}
	return predictions, nil
}

// GetWeights は学習された重み（係数）のコピーを返す
func (lr *LinearRegression) GetWeights() []float64 {
	return append([]float64(nil), lr.Coef...)
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred.(*mat.VecDense))
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// ExportWeights は学習済みの係数を ModelWeights として返す
// features は係数と同じ順序の特徴量名
func (lr *LinearRegression) ExportWeights(features []string) (*model.ModelWeights, error) {
	if err := lr.State.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	w := &model.ModelWeights{
		ModelType:       "LinearRegression",
		Version:         model.WeightsVersion,
		Coefficients:    lr.GetWeights(),
		Intercept:       lr.Intercept,
		Features:        append([]string(nil), features...),
		Hyperparameters: lr.GetParams(),
		IsFitted:        true,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportWeights は ModelWeights から係数を復元する
func (lr *LinearRegression) ImportWeights(w *model.ModelWeights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.ModelType != "LinearRegression" {
		return errors.NewValidationError("model_type", "expected LinearRegression", w.ModelType)
	}
	if !w.IsFitted {
		return errors.NewNotFittedError("LinearRegression", "ImportWeights")
	}
	lr.Coef = append([]float64(nil), w.Coefficients...)
	lr.Intercept = w.Intercept
	if fit, ok := w.Hyperparameters["fit_intercept"].(bool); ok {
		lr.FitIntercept = fit
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetDimensions(len(lr.Coef), 0)
	lr.State.SetFitted()
	return nil
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d)", lr.FitIntercept, len(lr.Coef))
}
