// Package naive_bayes はガウシアン・ナイーブベイズ分類器を提供する
package naive_bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// GaussianNB は特徴量ごとに正規分布を仮定するナイーブベイズ分類器
// scikit-learn の GaussianNB と同じ var_smoothing を使う
type GaussianNB struct {
	State *model.StateManager

	// VarSmoothing は全特徴量の最大分散に掛けて各分散へ加える比率
	VarSmoothing float64

	// 学習済みパラメータ
	Labels     []int
	ClassCount []float64
	ClassPrior []float64
	Theta      [][]float64 // クラス×特徴量の平均
	Var        [][]float64 // クラス×特徴量の分散（平滑化済み）
	Epsilon    float64
}

// Option は GaussianNB の設定を変更する関数
type Option func(*GaussianNB)

// WithVarSmoothing は分散の平滑化係数を設定する
func WithVarSmoothing(v float64) Option {
	return func(nb *GaussianNB) { nb.VarSmoothing = v }
}

var (
	_ model.Classifier      = (*GaussianNB)(nil)
	_ model.ParameterGetter = (*GaussianNB)(nil)
)

// NewGaussianNB は新しい GaussianNB を作成する（var_smoothing=1e-9）
func NewGaussianNB(opts ...Option) *GaussianNB {
	nb := &GaussianNB{
		State:        model.NewStateManager(),
		VarSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// IsFitted は学習済みかどうかを返す
func (nb *GaussianNB) IsFitted() bool {
	return nb.State.IsFitted()
}

// Classes は学習時に見たクラスを昇順で返す
func (nb *GaussianNB) Classes() []int {
	return append([]int(nil), nb.Labels...)
}

// Fit はクラスごとの事前確率・平均・分散を推定する
func (nb *GaussianNB) Fit(X, y mat.Matrix) error {
	if nb.VarSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.VarSmoothing)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("GaussianNB.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("GaussianNB.Fit", r, ry, 0)
	}
	labels, classes, err := model.ClassLabels("GaussianNB.Fit", y)
	if err != nil {
		return err
	}
	index := model.ClassIndex(classes)
	k := len(classes)

	// epsilon = var_smoothing * max(全体の特徴量分散)
	col := make([]float64, r)
	maxVar := 0.0
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	nb.Epsilon = nb.VarSmoothing * maxVar

	rows := make([][]int, k)
	for i, l := range labels {
		rows[index[l]] = append(rows[index[l]], i)
	}

	nb.Labels = classes
	nb.ClassCount = make([]float64, k)
	nb.ClassPrior = make([]float64, k)
	nb.Theta = make([][]float64, k)
	nb.Var = make([][]float64, k)
	for ci, idx := range rows {
		nb.ClassCount[ci] = float64(len(idx))
		nb.ClassPrior[ci] = float64(len(idx)) / float64(r)
		nb.Theta[ci] = make([]float64, c)
		nb.Var[ci] = make([]float64, c)

		vals := make([]float64, len(idx))
		for j := 0; j < c; j++ {
			for t, i := range idx {
				vals[t] = X.At(i, j)
			}
			mean, variance := stat.PopMeanVariance(vals, nil)
			nb.Theta[ci][j] = mean
			nb.Var[ci][j] = variance + nb.Epsilon
		}
	}

	// 分散が0のままだと対数尤度が発散する
	for ci := range nb.Var {
		for j, v := range nb.Var[ci] {
			if v <= 0 {
				return errors.NewNumericalInstabilityError("GaussianNB.Fit", []float64{v}, j)
			}
		}
	}

	if nb.State == nil {
		nb.State = model.NewStateManager()
	}
	nb.State.SetDimensions(c, r)
	nb.State.SetFitted()
	return nil
}

// jointLogLikelihood は各クラスの log P(c) + log P(x|c) を返す
func (nb *GaussianNB) jointLogLikelihood(x []float64) []float64 {
	jll := make([]float64, len(nb.Labels))
	for ci := range nb.Labels {
		ll := math.Log(nb.ClassPrior[ci])
		for j, v := range x {
			variance := nb.Var[ci][j]
			d := v - nb.Theta[ci][j]
			ll -= 0.5*math.Log(2*math.Pi*variance) + 0.5*d*d/variance
		}
		jll[ci] = ll
	}
	return jll
}

func (nb *GaussianNB) checkInput(method string, X mat.Matrix) error {
	if err := nb.State.RequireFitted("GaussianNB", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return nb.State.RequireFeatures("GaussianNB."+method, c)
}

// PredictLogProba は正規化済みの対数事後確率を返す
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkInput("PredictLogProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, len(nb.Labels), nil)
	for i := 0; i < r; i++ {
		jll := nb.jointLogLikelihood(model.RowSlice(X, i))
		if err := errors.CheckNumericalStability("GaussianNB.PredictLogProba", jll, 0); err != nil {
			return nil, err
		}
		norm := errors.LogSumExp(jll)
		for ci, v := range jll {
			out.Set(i, ci, v-norm)
		}
	}
	return out, nil
}

// PredictProba はクラスごとの事後確率を返す
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	proba := mat.DenseCopyOf(logProba)
	proba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, proba)
	return proba, nil
}

// Predict は事後確率が最大のクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxRows(logProba, nb.Labels), nil
}

// Score は正解率を返す
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, pred.(*mat.VecDense))
}

// GetParams はハイパーパラメータを返す
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.VarSmoothing,
	}
}

// String はモデルの文字列表現を返す
func (nb *GaussianNB) String() string {
	return fmt.Sprintf("GaussianNB(var_smoothing=%g)", nb.VarSmoothing)
}
