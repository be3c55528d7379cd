package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n×1
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習状態を持つモデル
type Estimator interface {
	Fitter
	IsFitted() bool
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// GetWeights は学習された重み（係数）を返す
	GetWeights() []float64
	// GetIntercept は学習された切片を返す
	GetIntercept() float64
}
