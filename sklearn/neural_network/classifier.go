package neural_network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/preprocessing"
)

// MLPClassifier は softmax 出力と交差エントロピー損失の MLP 分類器
type MLPClassifier struct {
	MLP

	Labels []int
}

var (
	_ model.Classifier      = (*MLPClassifier)(nil)
	_ model.ParameterGetter = (*MLPClassifier)(nil)
)

// NewMLPClassifier は新しい MLPClassifier を作成する
func NewMLPClassifier(opts ...Option) *MLPClassifier {
	return &MLPClassifier{MLP: newMLP(opts)}
}

// Classes は学習時に見たクラスを昇順で返す
func (c *MLPClassifier) Classes() []int {
	return append([]int(nil), c.Labels...)
}

// oneHot はラベルをクラス位置の one-hot 行列に変換する
func oneHot(labels []int, index map[int]int, k int) *mat.Dense {
	Y := mat.NewDense(len(labels), k, nil)
	for i, l := range labels {
		Y.Set(i, index[l], 1)
	}
	return Y
}

// Fit はネットワークを学習する。y は整数ラベルの n×1
func (c *MLPClassifier) Fit(X, y mat.Matrix) error {
	ry, _ := y.Dims()
	Xs, err := c.prepare("MLPClassifier", X, ry, true)
	if err != nil {
		return err
	}
	labels, classes, err := model.ClassLabels("MLPClassifier.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.NewValueError("MLPClassifier.Fit", "need samples of at least 2 classes")
	}
	index := model.ClassIndex(classes)
	k := len(classes)
	n, p := Xs.Dims()

	ts := trainSet{X: Xs, Y: oneHot(labels, index, k)}
	if c.EarlyStopping {
		split, err := preprocessing.StratifiedSplit(Xs, labels, c.ValidationFraction, c.RandomState)
		if err != nil {
			return err
		}
		toLabels := func(v *mat.VecDense) []int {
			out := make([]int, v.Len())
			for i := range out {
				out[i] = int(v.AtVec(i))
			}
			return out
		}
		ts.X = split.XTrain
		ts.Y = oneHot(toLabels(split.YTrain), index, k)
		ts.ValX = split.XTest
		ts.ValY = oneHot(toLabels(split.YTest), index, k)
		ts.ValScore = func(pred, y *mat.Dense) float64 {
			r, _ := pred.Dims()
			correct := 0
			for i := 0; i < r; i++ {
				if argmax(pred.RawRowView(i)) == argmax(y.RawRowView(i)) {
					correct++
				}
			}
			return float64(correct) / float64(r)
		}
	}

	if err := c.train("MLPClassifier", ts, softmaxOutput); err != nil {
		return err
	}
	c.Labels = classes
	c.markFitted(p, n)
	return nil
}

func argmax(row []float64) int {
	best := 0
	for j := 1; j < len(row); j++ {
		if row[j] > row[best] {
			best = j
		}
	}
	return best
}

// PredictProba は n×k のクラス確率を返す
func (c *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := c.prepare("MLPClassifier", X, 0, false)
	if err != nil {
		return nil, err
	}
	return c.output(Xs, softmaxOutput), nil
}

// Predict は確率が最大のクラスを返す
func (c *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxRows(proba, c.Labels), nil
}

// Score は正解率を返す
func (c *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, pred.(*mat.VecDense))
}

// NetworkInfo はネットワーク構成と学習結果の要約を返す
func (c *MLPClassifier) NetworkInfo() map[string]interface{} {
	info := c.info()
	info["task"] = "classification"
	info["n_classes"] = len(c.Labels)
	info["classes"] = c.Classes()
	return info
}

// GetParams はハイパーパラメータを返す
func (c *MLPClassifier) GetParams() map[string]interface{} {
	return c.getParams()
}

// String はモデルの文字列表現を返す
func (c *MLPClassifier) String() string {
	return fmt.Sprintf("MLPClassifier(hidden_layer_sizes=%v, max_iter=%d)", c.HiddenLayerSizes, c.MaxIter)
}
