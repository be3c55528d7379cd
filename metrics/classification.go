package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Accuracy は正解率を計算する。ラベルは整数コードを float64 で保持する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if int(yTrue.AtVec(i)) == int(yPred.AtVec(i)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は nClasses×nClasses の混同行列を返す
// 行が真のクラス、列が予測クラス
func ConfusionMatrix(yTrue, yPred *mat.VecDense, nClasses int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if nClasses < 1 {
		return nil, errors.NewValidationError("n_classes", "must be positive", nClasses)
	}
	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := 0; i < n; i++ {
		t, p := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			return nil, errors.NewValidationError("label", "outside [0, n_classes)", [2]int{t, p})
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

// ClassReport はクラスごとの適合率・再現率・F1とサポート数
type ClassReport struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// ClassificationReport はクラス別の評価とマクロ・加重平均
type ClassificationReport struct {
	Classes     map[string]ClassReport `json:"classes"`
	Accuracy    float64                `json:"accuracy"`
	MacroAvg    ClassReport            `json:"macro avg"`
	WeightedAvg ClassReport            `json:"weighted avg"`
}

// NewClassificationReport は classNames[i] をコード i のクラス名として
// 分類レポートを作成する。分母が0の指標は0とする
func NewClassificationReport(yTrue, yPred *mat.VecDense, classNames []string) (*ClassificationReport, error) {
	k := len(classNames)
	cm, err := ConfusionMatrix(yTrue, yPred, k)
	if err != nil {
		return nil, err
	}

	report := &ClassificationReport{Classes: make(map[string]ClassReport, k)}
	total, correct := 0, 0
	var macro, weighted ClassReport
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		var predicted, actual float64
		for j := 0; j < k; j++ {
			predicted += cm.At(j, c)
			actual += cm.At(c, j)
		}
		cr := ClassReport{
			Precision: errors.SafeDivide(tp, predicted),
			Recall:    errors.SafeDivide(tp, actual),
			Support:   int(actual),
		}
		cr.F1Score = errors.SafeDivide(2*cr.Precision*cr.Recall, cr.Precision+cr.Recall)
		report.Classes[classNames[c]] = cr

		macro.Precision += cr.Precision
		macro.Recall += cr.Recall
		macro.F1Score += cr.F1Score
		weighted.Precision += cr.Precision * actual
		weighted.Recall += cr.Recall * actual
		weighted.F1Score += cr.F1Score * actual
		total += cr.Support
		correct += int(tp)
	}

	fk, ft := float64(k), float64(total)
	report.MacroAvg = ClassReport{Precision: macro.Precision / fk, Recall: macro.Recall / fk, F1Score: macro.F1Score / fk, Support: total}
	report.WeightedAvg = ClassReport{
		Precision: errors.SafeDivide(weighted.Precision, ft),
		Recall:    errors.SafeDivide(weighted.Recall, ft),
		F1Score:   errors.SafeDivide(weighted.F1Score, ft),
		Support:   total,
	}
	report.Accuracy = errors.SafeDivide(float64(correct), ft)
	return report, nil
}
