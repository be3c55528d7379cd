package neural_network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/preprocessing"
)

// MLPRegressor は二乗誤差を最小化する MLP 回帰器
type MLPRegressor struct {
	MLP
}

var (
	_ model.Regressor       = (*MLPRegressor)(nil)
	_ model.ParameterGetter = (*MLPRegressor)(nil)
)

// NewMLPRegressor は新しい MLPRegressor を作成する
//
// 使用例:
//
//	reg := neural_network.NewMLPRegressor(
//		neural_network.WithHiddenLayerSizes(100, 50, 25),
//		neural_network.WithMaxIter(500),
//		neural_network.WithEarlyStopping(true, 0.1),
//		neural_network.WithRandomState(42),
//	)
func NewMLPRegressor(opts ...Option) *MLPRegressor {
	return &MLPRegressor{MLP: newMLP(opts)}
}

// Fit はネットワークを学習する。y は n×1
func (r *MLPRegressor) Fit(X, y mat.Matrix) error {
	ry, _ := y.Dims()
	Xs, err := r.prepare("MLPRegressor", X, ry, true)
	if err != nil {
		return err
	}
	n, c := Xs.Dims()
	Y := mat.DenseCopyOf(y)
	if _, cy := Y.Dims(); cy != 1 {
		return errors.NewValueError("MLPRegressor.Fit", fmt.Sprintf("y must be a column vector, got %d columns", cy))
	}

	ts := trainSet{X: Xs, Y: Y}
	if r.EarlyStopping {
		split, err := preprocessing.TrainTestSplit(Xs, mat.Col(nil, 0, Y), r.ValidationFraction, r.RandomState)
		if err != nil {
			return err
		}
		ts.X = split.XTrain
		ts.Y = columnDense(split.YTrain)
		ts.ValX = split.XTest
		ts.ValY = columnDense(split.YTest)
		ts.ValScore = func(pred, y *mat.Dense) float64 {
			score, err := metrics.R2Score(mat.VecDenseCopyOf(y.ColView(0)), mat.VecDenseCopyOf(pred.ColView(0)))
			if err != nil {
				return 0
			}
			return score
		}
	}

	if err := r.train("MLPRegressor", ts, identityOutput); err != nil {
		return err
	}
	r.markFitted(c, n)
	return nil
}

// Predict は n×1 の予測値を返す
func (r *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := r.prepare("MLPRegressor", X, 0, false)
	if err != nil {
		return nil, err
	}
	out := r.output(Xs, identityOutput)
	return mat.VecDenseCopyOf(out.ColView(0)), nil
}

// Score は決定係数（R²）を返す
func (r *MLPRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, pred.(*mat.VecDense))
}

// NetworkInfo はネットワーク構成と学習結果の要約を返す
func (r *MLPRegressor) NetworkInfo() map[string]interface{} {
	info := r.info()
	info["task"] = "regression"
	return info
}

// GetParams はハイパーパラメータを返す
func (r *MLPRegressor) GetParams() map[string]interface{} {
	return r.getParams()
}

// String はモデルの文字列表現を返す
func (r *MLPRegressor) String() string {
	return fmt.Sprintf("MLPRegressor(hidden_layer_sizes=%v, max_iter=%d)", r.HiddenLayerSizes, r.MaxIter)
}

func columnDense(v *mat.VecDense) *mat.Dense {
	n := v.Len()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, v.AtVec(i))
	}
	return out
}
