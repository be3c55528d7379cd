package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer returns R² for regressors and accuracy for classifiers.
type Scorer interface {
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor is a fitted-state estimator with a continuous n×1 output.
type Regressor interface {
	Estimator
	Predictor
	Scorer
}

// Classifier predicts integer class codes as produced by
// preprocessing.LabelEncoder.
type Classifier interface {
	Estimator
	Predictor
	Scorer

	// PredictProba returns an n×len(Classes()) matrix; each row sums to 1.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the classes seen during fitting, ascending.
	Classes() []int
}

// ParameterGetter exposes hyper-parameters, keyed by their scikit-learn names.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// Transformer は特徴量行列の変換器。Fit で学習した統計量だけを使って変換する
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}
