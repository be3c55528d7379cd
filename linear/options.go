package linear

// Option は LinearRegression の設定を変更する関数
type Option func(*LinearRegression)

// WithFitIntercept は切片を学習するかどうかを設定する
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithParallelThreshold は行列構築を並列化する行数の閾値を設定する
func WithParallelThreshold(rows int) Option {
	return func(lr *LinearRegression) {
		lr.parallelThreshold = rows
	}
}
