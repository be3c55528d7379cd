package preprocessing

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Split は訓練・テストに分割されたデータ
type Split struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain *mat.VecDense
	YTest  *mat.VecDense
}

func validateSplitArgs(op string, X mat.Matrix, nY int, testSize float64) (int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nY != r {
		return 0, errors.NewDimensionError(op, r, nY, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return 0, errors.NewValidationError("test_size", "must be within (0, 1)", testSize)
	}
	nTest := int(math.Ceil(float64(r) * testSize))
	if nTest >= r {
		return 0, errors.NewValidationError("test_size", "leaves no training samples", testSize)
	}
	return nTest, nil
}

// TrainTestSplit はデータをシャッフルして訓練・テストに分割する
// テスト件数は ceil(n * testSize)。同じ seed なら同じ分割になる
func TrainTestSplit(X mat.Matrix, y []float64, testSize float64, seed int64) (*Split, error) {
	nTest, err := validateSplitArgs("TrainTestSplit", X, len(y), testSize)
	if err != nil {
		return nil, err
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(y))
	return gather(X, y, perm[nTest:], perm[:nTest]), nil
}

// StratifiedSplit はクラス比率を保ったまま訓練・テストに分割する
//
// 各クラスのテスト件数は n_c*testSize の切り捨てを基本とし、残りの枠は
// 小数部の大きいクラスから順に割り当てる。
func StratifiedSplit(X mat.Matrix, y []int, testSize float64, seed int64) (*Split, error) {
	nTest, err := validateSplitArgs("StratifiedSplit", X, len(y), testSize)
	if err != nil {
		return nil, err
	}

	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	type alloc struct {
		class int
		n     int
		frac  float64
	}
	allocs := make([]alloc, len(classes))
	assigned := 0
	for i, c := range classes {
		exact := float64(len(byClass[c])) * testSize
		n := int(math.Floor(exact))
		allocs[i] = alloc{class: c, n: n, frac: exact - float64(n)}
		assigned += n
	}
	order := make([]int, len(allocs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return allocs[order[a]].frac > allocs[order[b]].frac })
	for k := 0; assigned < nTest && k < len(order); k++ {
		a := &allocs[order[k]]
		if a.n < len(byClass[a.class]) {
			a.n++
			assigned++
		}
	}

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for _, a := range allocs {
		idx := append([]int(nil), byClass[a.class]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		testIdx = append(testIdx, idx[:a.n]...)
		trainIdx = append(trainIdx, idx[a.n:]...)
	}
	rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	rng.Shuffle(len(testIdx), func(i, j int) { testIdx[i], testIdx[j] = testIdx[j], testIdx[i] })

	yf := make([]float64, len(y))
	for i, v := range y {
		yf[i] = float64(v)
	}
	return gather(X, yf, trainIdx, testIdx), nil
}

func gather(X mat.Matrix, y []float64, trainIdx, testIdx []int) *Split {
	_, c := X.Dims()
	pick := func(idx []int) (*mat.Dense, *mat.VecDense) {
		xs := mat.NewDense(len(idx), c, nil)
		ys := mat.NewVecDense(len(idx), nil)
		for row, i := range idx {
			for j := 0; j < c; j++ {
				xs.Set(row, j, X.At(i, j))
			}
			ys.SetVec(row, y[i])
		}
		return xs, ys
	}
	s := &Split{}
	s.XTrain, s.YTrain = pick(trainIdx)
	s.XTest, s.YTest = pick(testIdx)
	return s
}
