// Package svm implements an RBF-kernel support vector classifier.
//
// Multiclass problems are solved one-vs-one like libsvm. Each binary problem
// is optimised with SMO; probabilities come from Platt scaling fitted on
// 5-fold cross-validated decision values and pairwise coupling.
package svm

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/core/parallel"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

const (
	// GammaScale uses 1 / (n_features * X.var()).
	GammaScale = "scale"
	// GammaAuto uses 1 / n_features.
	GammaAuto = "auto"

	probFolds = 5
	probClip  = 1e-7
)

// Pair is the binary classifier separating class I (positive) from class J.
type Pair struct {
	I, J  int       // class positions in Labels
	SV    []int     // positions in SupportVectors
	Coef  []float64 // alpha * y for each SV
	Rho   float64
	ProbA float64
	ProbB float64
}

// SVC is a C-support vector classifier with an RBF kernel.
type SVC struct {
	State *model.StateManager

	// Hyperparameters
	C           float64
	Gamma       string  // GammaScale, GammaAuto, or "" to use GammaValue
	GammaValue  float64 // explicit gamma; after Fit, the gamma actually used
	Tol         float64
	MaxIter     int
	Probability bool
	RandomState int64

	// Learned parameters
	Labels         []int
	SupportVectors [][]float64
	SupportIndices []int // training-row index of each SV
	NSupport       []int // SV count per class
	Pairs          []Pair

	parallelThreshold int
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the regularisation parameter.
func WithC(c float64) Option {
	return func(s *SVC) { s.C = c }
}

// WithGamma selects GammaScale or GammaAuto.
func WithGamma(mode string) Option {
	return func(s *SVC) { s.Gamma = mode }
}

// WithGammaValue sets an explicit kernel coefficient.
func WithGammaValue(g float64) Option {
	return func(s *SVC) {
		s.Gamma = ""
		s.GammaValue = g
	}
}

// WithTol sets the KKT violation tolerance.
func WithTol(tol float64) Option {
	return func(s *SVC) { s.Tol = tol }
}

// WithMaxIter bounds the SMO iterations per binary problem.
func WithMaxIter(n int) Option {
	return func(s *SVC) { s.MaxIter = n }
}

// WithProbability enables Platt-scaled probability estimates.
func WithProbability(enabled bool) Option {
	return func(s *SVC) { s.Probability = enabled }
}

// WithRandomState seeds the cross-validation shuffle used for probabilities.
func WithRandomState(seed int64) Option {
	return func(s *SVC) { s.RandomState = seed }
}

// WithParallelThreshold sets the row count above which kernel rows are
// computed in parallel.
func WithParallelThreshold(rows int) Option {
	return func(s *SVC) { s.parallelThreshold = rows }
}

var (
	_ model.Classifier      = (*SVC)(nil)
	_ model.ParameterGetter = (*SVC)(nil)
)

// NewSVC creates a classifier with C=1, gamma="scale" and probabilities on.
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		State:             model.NewStateManager(),
		C:                 1.0,
		Gamma:             GammaScale,
		Tol:               1e-3,
		MaxIter:           100000,
		Probability:       true,
		parallelThreshold: parallel.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsFitted reports whether Fit has completed.
func (s *SVC) IsFitted() bool {
	return s.State.IsFitted()
}

// Classes returns the sorted class labels seen during fitting.
func (s *SVC) Classes() []int {
	return append([]int(nil), s.Labels...)
}

// SupportVectorCount returns the number of distinct support vectors.
func (s *SVC) SupportVectorCount() int {
	return len(s.SupportIndices)
}

func (s *SVC) threshold() int {
	if s.parallelThreshold <= 0 {
		return parallel.DefaultThreshold
	}
	return s.parallelThreshold
}

func (s *SVC) resolveGamma(rows [][]float64) (float64, error) {
	nFeatures := len(rows[0])
	switch s.Gamma {
	case GammaScale:
		all := make([]float64, 0, len(rows)*nFeatures)
		for _, r := range rows {
			all = append(all, r...)
		}
		_, v := stat.PopMeanVariance(all, nil)
		if v == 0 {
			return 1.0, nil
		}
		return 1 / (float64(nFeatures) * v), nil
	case GammaAuto:
		return 1 / float64(nFeatures), nil
	case "":
		if s.GammaValue <= 0 {
			return 0, errors.NewValidationError("gamma", "must be positive", s.GammaValue)
		}
		return s.GammaValue, nil
	default:
		return 0, errors.NewValidationError("gamma", "must be scale, auto or a positive value", s.Gamma)
	}
}

// Fit trains one binary SVM per class pair.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("SVC.Fit", r, ry, 0)
	}
	labels, classes, err := model.ClassLabels("SVC.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) < 2 {
		return errors.NewValueError("SVC.Fit", "need samples of at least 2 classes")
	}

	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = model.RowSlice(X, i)
	}
	gamma, err := s.resolveGamma(rows)
	if err != nil {
		return err
	}

	index := model.ClassIndex(classes)
	byClass := make([][]int, len(classes))
	for i, l := range labels {
		byClass[index[l]] = append(byClass[index[l]], i)
	}

	seed := s.RandomState
	if seed < 0 {
		seed = 0
	}
	rng := rand.New(rand.NewSource(seed))

	type trained struct {
		pair Pair
		rows []int // training rows with alpha > 0
		coef []float64
	}
	var results []trained
	isSV := make(map[int]bool)

	for a := 0; a < len(classes); a++ {
		for b := a + 1; b < len(classes); b++ {
			idx := append(append([]int(nil), byClass[a]...), byClass[b]...)
			sub := make([][]float64, len(idx))
			yy := make([]float64, len(idx))
			for t, i := range idx {
				sub[t] = rows[i]
				if t < len(byClass[a]) {
					yy[t] = 1
				} else {
					yy[t] = -1
				}
			}
			K := kernelMatrix(sub, gamma, s.threshold())
			sol := (&binaryProblem{K: K, Y: yy, C: s.C, Tol: s.Tol, MaxIter: s.MaxIter}).solve()

			tr := trained{pair: Pair{I: a, J: b, Rho: sol.Rho}}
			for t, alpha := range sol.Alpha {
				if alpha > 0 {
					tr.rows = append(tr.rows, idx[t])
					tr.coef = append(tr.coef, alpha*yy[t])
					isSV[idx[t]] = true
				}
			}
			if s.Probability {
				dec := s.crossValDecision(K, yy, rng)
				tr.pair.ProbA, tr.pair.ProbB = sigmoidTrain(dec, yy)
			}
			results = append(results, tr)
		}
	}

	// サポートベクターはクラス順、同一クラス内は学習データ順に並べる
	s.SupportIndices = s.SupportIndices[:0]
	for i := range isSV {
		s.SupportIndices = append(s.SupportIndices, i)
	}
	sort.Slice(s.SupportIndices, func(p, q int) bool {
		a, b := s.SupportIndices[p], s.SupportIndices[q]
		ca, cb := index[labels[a]], index[labels[b]]
		if ca != cb {
			return ca < cb
		}
		return a < b
	})
	position := make(map[int]int, len(s.SupportIndices))
	s.SupportVectors = make([][]float64, len(s.SupportIndices))
	s.NSupport = make([]int, len(classes))
	for p, i := range s.SupportIndices {
		position[i] = p
		s.SupportVectors[p] = append([]float64(nil), rows[i]...)
		s.NSupport[index[labels[i]]]++
	}

	s.Pairs = make([]Pair, len(results))
	for k, tr := range results {
		pair := tr.pair
		pair.SV = make([]int, len(tr.rows))
		for t, i := range tr.rows {
			pair.SV[t] = position[i]
		}
		pair.Coef = tr.coef
		s.Pairs[k] = pair
	}

	s.Labels = classes
	s.GammaValue = gamma
	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// crossValDecision returns out-of-fold decision values for Platt scaling.
func (s *SVC) crossValDecision(K [][]float64, y []float64, rng *rand.Rand) []float64 {
	m := len(y)
	perm := rng.Perm(m)
	dec := make([]float64, m)

	for f := 0; f < probFolds; f++ {
		start, end := f*m/probFolds, (f+1)*m/probFolds
		var train []int
		train = append(train, perm[:start]...)
		train = append(train, perm[end:]...)

		var pos, neg int
		for _, i := range train {
			if y[i] > 0 {
				pos++
			} else {
				neg++
			}
		}
		switch {
		case pos == 0 && neg == 0:
			for _, i := range perm[start:end] {
				dec[i] = 0
			}
			continue
		case neg == 0:
			for _, i := range perm[start:end] {
				dec[i] = 1
			}
			continue
		case pos == 0:
			for _, i := range perm[start:end] {
				dec[i] = -1
			}
			continue
		}

		subK := make([][]float64, len(train))
		subY := make([]float64, len(train))
		for a, i := range train {
			subY[a] = y[i]
			subK[a] = make([]float64, len(train))
			for b, j := range train {
				subK[a][b] = K[i][j]
			}
		}
		sol := (&binaryProblem{K: subK, Y: subY, C: s.C, Tol: s.Tol, MaxIter: s.MaxIter}).solve()
		for _, t := range perm[start:end] {
			v := -sol.Rho
			for a, i := range train {
				if sol.Alpha[a] > 0 {
					v += sol.Alpha[a] * subY[a] * K[i][t]
				}
			}
			dec[t] = v
		}
	}
	return dec
}

func (s *SVC) checkInput(method string, X mat.Matrix) error {
	if err := s.State.RequireFitted("SVC", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return s.State.RequireFeatures("SVC."+method, c)
}

// pairDecisions returns the one-vs-one decision values for x. A positive
// value favours Pairs[k].I.
func (s *SVC) pairDecisions(x []float64) []float64 {
	kx := make([]float64, len(s.SupportVectors))
	for p, sv := range s.SupportVectors {
		kx[p] = rbf(sv, x, s.GammaValue)
	}
	out := make([]float64, len(s.Pairs))
	for k, pair := range s.Pairs {
		v := -pair.Rho
		for t, p := range pair.SV {
			v += pair.Coef[t] * kx[p]
		}
		out[k] = v
	}
	return out
}

// Predict returns the class with the most one-vs-one votes. Ties go to the
// smallest label.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := s.checkInput("Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		votes := make([]int, len(s.Labels))
		for k, d := range s.pairDecisions(model.RowSlice(X, i)) {
			if d > 0 {
				votes[s.Pairs[k].I]++
			} else {
				votes[s.Pairs[k].J]++
			}
		}
		best := 0
		for c := 1; c < len(votes); c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		out.SetVec(i, float64(s.Labels[best]))
	}
	return out, nil
}

// DecisionFunction returns one-vs-rest shaped scores: n×k for k > 2 classes
// (votes plus a bounded confidence term), n×1 for binary problems where a
// positive score favours the second class.
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.checkInput("DecisionFunction", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	k := len(s.Labels)
	if k == 2 {
		out := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			out.Set(i, 0, -s.pairDecisions(model.RowSlice(X, i))[0])
		}
		return out, nil
	}

	out := mat.NewDense(r, k, nil)
	for i := 0; i < r; i++ {
		votes := make([]float64, k)
		conf := make([]float64, k)
		for p, d := range s.pairDecisions(model.RowSlice(X, i)) {
			pair := s.Pairs[p]
			conf[pair.I] += d
			conf[pair.J] -= d
			if d >= 0 {
				votes[pair.I]++
			} else {
				votes[pair.J]++
			}
		}
		for c := 0; c < k; c++ {
			out.Set(i, c, votes[c]+conf[c]/(3*(math.Abs(conf[c])+1)))
		}
	}
	return out, nil
}

// PredictProba returns coupled Platt probabilities. It fails unless the model
// was trained with probabilities enabled.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := s.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	if !s.Probability {
		return nil, errors.NewValueError("SVC.PredictProba", "probability estimates are disabled")
	}
	r, _ := X.Dims()
	k := len(s.Labels)
	out := mat.NewDense(r, k, nil)
	for i := 0; i < r; i++ {
		pr := make([][]float64, k)
		for c := range pr {
			pr[c] = make([]float64, k)
		}
		for p, d := range s.pairDecisions(model.RowSlice(X, i)) {
			pair := s.Pairs[p]
			v := errors.ClipValue(sigmoidPredict(d, pair.ProbA, pair.ProbB), probClip, 1-probClip)
			pr[pair.I][pair.J] = v
			pr[pair.J][pair.I] = 1 - v
		}
		out.SetRow(i, coupleProbabilities(pr))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, pred.(*mat.VecDense))
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	var gamma interface{} = s.Gamma
	if s.Gamma == "" {
		gamma = s.GammaValue
	}
	return map[string]interface{}{
		"kernel":       "rbf",
		"C":            s.C,
		"gamma":        gamma,
		"tol":          s.Tol,
		"max_iter":     s.MaxIter,
		"probability":  s.Probability,
		"random_state": s.RandomState,
	}
}

// String returns a short description of the classifier.
func (s *SVC) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("SVC(kernel=rbf, C=%g, gamma=%v)", s.C, s.GetParams()["gamma"])
	}
	return fmt.Sprintf("SVC(kernel=rbf, C=%g, gamma=%.4g, n_support=%d)", s.C, s.GammaValue, s.SupportVectorCount())
}
