package svm

import (
	"math"

	"github.com/YuminosukeSato/eduinsight/core/parallel"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// tau は二次係数が非正のときの代替値
const tau = 1e-12

// binaryProblem は y ∈ {+1, -1} の二値 C-SVC 双対問題
//
//	min 0.5 αᵀQα - eᵀα  s.t. 0 ≤ α ≤ C, yᵀα = 0,  Q_ij = y_i y_j K(x_i, x_j)
type binaryProblem struct {
	K       [][]float64 // カーネル行列
	Y       []float64
	C       float64
	Tol     float64
	MaxIter int
}

// binarySolution は双対問題の解
type binarySolution struct {
	Alpha []float64
	Rho   float64
	Iter  int
}

// kernelMatrix は rows 同士の RBF カーネル行列を計算する
func kernelMatrix(rows [][]float64, gamma float64, threshold int) [][]float64 {
	n := len(rows)
	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
	}
	parallel.ParallelizeWithThreshold(n, threshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < n; j++ {
				K[i][j] = rbf(rows[i], rows[j], gamma)
			}
		}
	})
	return K
}

func rbf(a, b []float64, gamma float64) float64 {
	d := 0.0
	for k := range a {
		diff := a[k] - b[k]
		d += diff * diff
	}
	return math.Exp(-gamma * d)
}

// solve は最大違反ペアを選ぶ SMO で双対問題を解く
// 反復上限に達した場合は ConvergenceWarning を出して途中解を返す
func (p *binaryProblem) solve() binarySolution {
	n := len(p.Y)
	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	q := func(i, j int) float64 { return p.Y[i] * p.Y[j] * p.K[i][j] }
	isUpper := func(t int) bool { return alpha[t] >= p.C }
	isLower := func(t int) bool { return alpha[t] <= 0 }
	inUp := func(t int) bool { return (p.Y[t] > 0 && !isUpper(t)) || (p.Y[t] < 0 && !isLower(t)) }
	inLow := func(t int) bool { return (p.Y[t] > 0 && !isLower(t)) || (p.Y[t] < 0 && !isUpper(t)) }

	iter := 0
	for ; iter < p.MaxIter; iter++ {
		i, j := -1, -1
		gmax, gmin := math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			v := -p.Y[t] * grad[t]
			if inUp(t) && v > gmax {
				gmax, i = v, t
			}
			if inLow(t) && v < gmin {
				gmin, j = v, t
			}
		}
		if i < 0 || j < 0 || gmax-gmin < p.Tol {
			break
		}

		oldI, oldJ := alpha[i], alpha[j]
		C := p.C
		if p.Y[i] != p.Y[j] {
			quad := p.K[i][i] + p.K[j][j] + 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := p.K[i][i] + p.K[j][j] - 2*q(i, j)
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for t := 0; t < n; t++ {
			grad[t] += q(i, t)*dI + q(j, t)*dJ
		}
	}
	if iter >= p.MaxIter {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "SMO reached max_iter before the KKT tolerance"))
	}

	return binarySolution{Alpha: alpha, Rho: p.rho(alpha, grad), Iter: iter}
}

// rho は自由なサポートベクターの平均、無ければ境界の中点から切片を求める
func (p *binaryProblem) rho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree, nFree := 0.0, 0
	for t := range alpha {
		yG := p.Y[t] * grad[t]
		switch {
		case alpha[t] >= p.C:
			if p.Y[t] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[t] <= 0:
			if p.Y[t] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
