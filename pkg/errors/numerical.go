package errors

import (
	"math"
)

// finite は NaN でも ±Inf でもないかを返す
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability は values に NaN か Inf が含まれていれば
// NumericalInstabilityError を返す。iteration は反復の番号（反復がなければ 0）
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar は単一の値について CheckNumericalStability と同じ検査をする
func CheckScalar(operation string, value float64, iteration int) error {
	if !finite(value) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// SafeDivide は分母がほぼ 0 のとき 0 を返す除算
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue は value を [lo, hi] に収める
func ClipValue(value, lo, hi float64) float64 {
	return math.Min(math.Max(value, lo), hi)
}

// LogSumExp は log(Σ exp(v)) を桁あふれなしに計算する。空なら -Inf
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	maxVal := values[0]
	for _, v := range values[1:] {
		maxVal = math.Max(maxVal, v)
	}
	if math.IsInf(maxVal, -1) {
		return maxVal
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}
