// Package neural_network は多層パーセプトロン（MLP）の回帰器・分類器を提供する
//
// 隠れ層は ReLU、最適化は Adam。scikit-learn の MLPRegressor /
// MLPClassifier と同じ既定値（L2 正則化 1e-4、学習率 1e-3、バッチ 200、
// 10 エポック改善なしで停止）を使う。入力は内部の StandardScaler で標準化する。
package neural_network

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/preprocessing"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// MLP は回帰器・分類器に共通するネットワークと学習設定
type MLP struct {
	State *model.StateManager

	// ハイパーパラメータ
	HiddenLayerSizes   []int
	LearningRateInit   float64
	Alpha              float64 // L2 正則化係数
	Beta1, Beta2       float64
	Epsilon            float64
	BatchSize          int // 0 のとき min(200, n)
	MaxIter            int
	Tol                float64
	NIterNoChange      int
	EarlyStopping      bool
	ValidationFraction float64
	RandomState        int64
	Standardize        bool

	// 学習済みパラメータ（層 l の重みは fanIn×fanOut の行優先）
	LayerSizes []int
	Coefs      [][]float64
	Intercepts [][]float64
	Scaler     *preprocessing.StandardScaler

	// 学習の記録
	NIter               int
	Loss                float64
	LossCurve           []float64
	ValidationScores    []float64
	BestValidationScore float64
}

// Option は MLP の設定を変更する関数
type Option func(*MLP)

// WithHiddenLayerSizes は隠れ層のユニット数を設定する
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLP) { m.HiddenLayerSizes = append([]int(nil), sizes...) }
}

// WithMaxIter は最大エポック数を設定する
func WithMaxIter(n int) Option {
	return func(m *MLP) { m.MaxIter = n }
}

// WithLearningRate は Adam の初期学習率を設定する
func WithLearningRate(lr float64) Option {
	return func(m *MLP) { m.LearningRateInit = lr }
}

// WithAlpha は L2 正則化係数を設定する
func WithAlpha(alpha float64) Option {
	return func(m *MLP) { m.Alpha = alpha }
}

// WithBatchSize はミニバッチの大きさを設定する
func WithBatchSize(n int) Option {
	return func(m *MLP) { m.BatchSize = n }
}

// WithTol は改善とみなす最小量を設定する
func WithTol(tol float64) Option {
	return func(m *MLP) { m.Tol = tol }
}

// WithNIterNoChange は改善なしで許容するエポック数を設定する
func WithNIterNoChange(n int) Option {
	return func(m *MLP) { m.NIterNoChange = n }
}

// WithEarlyStopping は検証データによる早期終了を設定する
func WithEarlyStopping(enabled bool, validationFraction float64) Option {
	return func(m *MLP) {
		m.EarlyStopping = enabled
		m.ValidationFraction = validationFraction
	}
}

// WithRandomState は重み初期化とシャッフルの乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(m *MLP) { m.RandomState = seed }
}

// WithStandardize は入力を標準化するかどうかを設定する
func WithStandardize(enabled bool) Option {
	return func(m *MLP) { m.Standardize = enabled }
}

func newMLP(opts []Option) MLP {
	m := MLP{
		State:              model.NewStateManager(),
		HiddenLayerSizes:   []int{100},
		LearningRateInit:   1e-3,
		Alpha:              1e-4,
		Beta1:              0.9,
		Beta2:              0.999,
		Epsilon:            1e-8,
		MaxIter:            200,
		Tol:                1e-4,
		NIterNoChange:      10,
		ValidationFraction: 0.1,
		Standardize:        true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// IsFitted は学習済みかどうかを返す
func (m *MLP) IsFitted() bool {
	return m.State.IsFitted()
}

// NLayers は入力層と出力層を含む層の数を返す
func (m *MLP) NLayers() int {
	return len(m.HiddenLayerSizes) + 2
}

func (m *MLP) validate() error {
	if len(m.HiddenLayerSizes) == 0 {
		return errors.NewValidationError("hidden_layer_sizes", "must not be empty", m.HiddenLayerSizes)
	}
	for _, s := range m.HiddenLayerSizes {
		if s < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "must be positive", m.HiddenLayerSizes)
		}
	}
	if m.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", m.MaxIter)
	}
	if m.LearningRateInit <= 0 {
		return errors.NewValidationError("learning_rate_init", "must be positive", m.LearningRateInit)
	}
	if m.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", m.Alpha)
	}
	if m.EarlyStopping && (m.ValidationFraction <= 0 || m.ValidationFraction >= 1) {
		return errors.NewValidationError("validation_fraction", "must be within (0, 1)", m.ValidationFraction)
	}
	return nil
}

// outputKind は出力層の活性化と損失
type outputKind int

const (
	identityOutput outputKind = iota // 二乗誤差
	softmaxOutput                    // 交差エントロピー
)

// trainSet は学習・検証に使う行列
type trainSet struct {
	X, Y       *mat.Dense
	ValX, ValY *mat.Dense
	ValScore   func(pred *mat.Dense, y *mat.Dense) float64
}

// layer は学習中の層のビュー（Coefs と記憶領域を共有する）
func (m *MLP) layer(l int) (*mat.Dense, *mat.VecDense) {
	w := mat.NewDense(m.LayerSizes[l], m.LayerSizes[l+1], m.Coefs[l])
	b := mat.NewVecDense(m.LayerSizes[l+1], m.Intercepts[l])
	return w, b
}

// initWeights は Glorot 一様分布で重みを初期化する
func (m *MLP) initWeights(nIn, nOut int, kind outputKind, rng *rand.Rand) {
	m.LayerSizes = append(append([]int{nIn}, m.HiddenLayerSizes...), nOut)
	nl := len(m.LayerSizes) - 1
	m.Coefs = make([][]float64, nl)
	m.Intercepts = make([][]float64, nl)
	for l := 0; l < nl; l++ {
		fanIn, fanOut := m.LayerSizes[l], m.LayerSizes[l+1]
		factor := 6.0
		if l == nl-1 && kind == softmaxOutput {
			factor = 2.0
		}
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		m.Coefs[l] = make([]float64, fanIn*fanOut)
		for k := range m.Coefs[l] {
			m.Coefs[l][k] = (2*rng.Float64() - 1) * bound
		}
		m.Intercepts[l] = make([]float64, fanOut)
		for k := range m.Intercepts[l] {
			m.Intercepts[l][k] = (2*rng.Float64() - 1) * bound
		}
	}
}

// forward は各層の活性値を返す。acts[0] は入力
func (m *MLP) forward(X mat.Matrix, kind outputKind) []*mat.Dense {
	r, _ := X.Dims()
	nl := len(m.Coefs)
	acts := make([]*mat.Dense, nl+1)
	acts[0] = mat.DenseCopyOf(X)
	for l := 0; l < nl; l++ {
		w, b := m.layer(l)
		z := mat.NewDense(r, m.LayerSizes[l+1], nil)
		z.Mul(acts[l], w)
		z.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, z)
		if l < nl-1 {
			z.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
		} else if kind == softmaxOutput {
			softmaxRows(z)
		}
		acts[l+1] = z
	}
	return acts
}

func softmaxRows(z *mat.Dense) {
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		maxV := row[0]
		for _, v := range row[1:] {
			maxV = math.Max(maxV, v)
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - maxV)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			row[j] /= sum
		}
	}
}

// batchLoss はミニバッチの損失（正則化項を含む）
func (m *MLP) batchLoss(out, y *mat.Dense, kind outputKind) float64 {
	r, c := out.Dims()
	loss := 0.0
	switch kind {
	case softmaxOutput:
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if t := y.At(i, j); t > 0 {
					loss -= t * math.Log(errors.ClipValue(out.At(i, j), 1e-15, 1))
				}
			}
		}
		loss /= float64(r)
	default:
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d := y.At(i, j) - out.At(i, j)
				loss += d * d
			}
		}
		loss /= 2 * float64(r)
	}
	sq := 0.0
	for _, w := range m.Coefs {
		for _, v := range w {
			sq += v * v
		}
	}
	return loss + 0.5*m.Alpha*sq/float64(r)
}

// adam は Adam の一次・二次モーメント
type adam struct {
	m, v [][]float64
	t    int
}

func newAdam(params [][]float64) *adam {
	a := &adam{m: make([][]float64, len(params)), v: make([][]float64, len(params))}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

func (a *adam) step(params, grads [][]float64, lr, beta1, beta2, eps float64) {
	a.t++
	lrT := lr * math.Sqrt(1-math.Pow(beta2, float64(a.t))) / (1 - math.Pow(beta1, float64(a.t)))
	for i, p := range params {
		for k := range p {
			g := grads[i][k]
			a.m[i][k] = beta1*a.m[i][k] + (1-beta1)*g
			a.v[i][k] = beta2*a.v[i][k] + (1-beta2)*g*g
			p[k] -= lrT * a.m[i][k] / (math.Sqrt(a.v[i][k]) + eps)
		}
	}
}

// backward はミニバッチの勾配を params と同じ並び（重み、切片の順）で返す
func (m *MLP) backward(acts []*mat.Dense, y *mat.Dense) [][]float64 {
	nl := len(m.Coefs)
	r, _ := acts[0].Dims()
	n := float64(r)

	grads := make([][]float64, 2*nl)
	delta := mat.NewDense(r, m.LayerSizes[nl], nil)
	delta.Sub(acts[nl], y)

	for l := nl - 1; l >= 0; l-- {
		w, _ := m.layer(l)
		gw := mat.NewDense(m.LayerSizes[l], m.LayerSizes[l+1], nil)
		gw.Mul(acts[l].T(), delta)
		gw.Apply(func(i, j int, v float64) float64 { return (v + m.Alpha*w.At(i, j)) / n }, gw)
		grads[l] = gw.RawMatrix().Data

		gb := make([]float64, m.LayerSizes[l+1])
		for i := 0; i < r; i++ {
			for j, v := range delta.RawRowView(i) {
				gb[j] += v / n
			}
		}
		grads[nl+l] = gb

		if l > 0 {
			prev := mat.NewDense(r, m.LayerSizes[l], nil)
			prev.Mul(delta, w.T())
			act := acts[l]
			prev.Apply(func(i, j int, v float64) float64 {
				if act.At(i, j) <= 0 {
					return 0
				}
				return v
			}, prev)
			delta = prev
		}
	}
	return grads
}

func (m *MLP) params() [][]float64 {
	return append(append([][]float64(nil), m.Coefs...), m.Intercepts...)
}

func cloneParams(p [][]float64) [][]float64 {
	out := make([][]float64, len(p))
	for i, v := range p {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// train はミニバッチ Adam で学習する
func (m *MLP) train(name string, ts trainSet, kind outputKind) error {
	rng := rand.New(rand.NewSource(m.RandomState))
	nSamples, nIn := ts.X.Dims()
	_, nOut := ts.Y.Dims()
	m.initWeights(nIn, nOut, kind, rng)

	batch := m.BatchSize
	if batch <= 0 || batch > nSamples {
		batch = 200
		if nSamples < batch {
			batch = nSamples
		}
	}

	params := m.params()
	opt := newAdam(params)
	bestLoss := math.Inf(1)
	m.BestValidationScore = math.Inf(-1)
	var bestParams [][]float64
	noImprove := 0
	m.LossCurve = m.LossCurve[:0]
	m.ValidationScores = m.ValidationScores[:0]

	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	converged := false
	for epoch := 0; epoch < m.MaxIter; epoch++ {
		rng.Shuffle(nSamples, func(i, j int) { order[i], order[j] = order[j], order[i] })

		accum := 0.0
		for start := 0; start < nSamples; start += batch {
			end := start + batch
			if end > nSamples {
				end = nSamples
			}
			xb := mat.NewDense(end-start, nIn, nil)
			yb := mat.NewDense(end-start, nOut, nil)
			for k, i := range order[start:end] {
				xb.SetRow(k, ts.X.RawRowView(i))
				yb.SetRow(k, ts.Y.RawRowView(i))
			}
			acts := m.forward(xb, kind)
			accum += m.batchLoss(acts[len(acts)-1], yb, kind) * float64(end-start)
			opt.step(params, m.backward(acts, yb), m.LearningRateInit, m.Beta1, m.Beta2, m.Epsilon)
		}

		m.NIter = epoch + 1
		m.Loss = accum / float64(nSamples)
		if err := errors.CheckScalar(name+".Fit", m.Loss, m.NIter); err != nil {
			return err
		}
		for _, p := range params {
			if err := errors.CheckNumericalStability(name+".Fit", p, m.NIter); err != nil {
				return err
			}
		}
		m.LossCurve = append(m.LossCurve, m.Loss)

		if m.EarlyStopping {
			acts := m.forward(ts.ValX, kind)
			score := ts.ValScore(acts[len(acts)-1], ts.ValY)
			m.ValidationScores = append(m.ValidationScores, score)
			if score < m.BestValidationScore+m.Tol {
				noImprove++
			} else {
				noImprove = 0
			}
			if score > m.BestValidationScore {
				m.BestValidationScore = score
				bestParams = cloneParams(params)
			}
		} else {
			if m.Loss > bestLoss-m.Tol {
				noImprove++
			} else {
				noImprove = 0
			}
			if m.Loss < bestLoss {
				bestLoss = m.Loss
			}
		}
		if noImprove > m.NIterNoChange {
			converged = true
			break
		}
	}

	if m.EarlyStopping && bestParams != nil {
		for i := range params {
			copy(params[i], bestParams[i])
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(name, m.NIter, "maximum iterations reached and the optimization hasn't converged yet"))
	}
	return nil
}

// prepare は入力を検証し、必要なら標準化スケーラーを学習して変換する
func (m *MLP) prepare(name string, X mat.Matrix, nY int, fit bool) (*mat.Dense, error) {
	r, c := X.Dims()
	if fit {
		if err := m.validate(); err != nil {
			return nil, err
		}
		if r == 0 || c == 0 {
			return nil, errors.NewModelError(name+".Fit", "empty data", errors.ErrEmptyData)
		}
		if nY != r {
			return nil, errors.NewDimensionError(name+".Fit", r, nY, 0)
		}
		m.Scaler = nil
		if m.Standardize {
			m.Scaler = preprocessing.NewStandardScalerDefault()
			if err := m.Scaler.Fit(X); err != nil {
				return nil, err
			}
		}
	} else {
		if err := m.State.RequireFitted(name, "Predict"); err != nil {
			return nil, err
		}
		if err := m.State.RequireFeatures(name+".Predict", c); err != nil {
			return nil, err
		}
	}
	if m.Scaler == nil {
		return mat.DenseCopyOf(X), nil
	}
	scaled, err := m.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(scaled), nil
}

func (m *MLP) markFitted(nFeatures, nSamples int) {
	if m.State == nil {
		m.State = model.NewStateManager()
	}
	m.State.SetDimensions(nFeatures, nSamples)
	m.State.SetFitted()
}

// output は学習済みネットワークの出力層を返す
func (m *MLP) output(X *mat.Dense, kind outputKind) *mat.Dense {
	acts := m.forward(X, kind)
	return acts[len(acts)-1]
}

// info はネットワーク構成の要約
func (m *MLP) info() map[string]interface{} {
	return map[string]interface{}{
		"n_layers":           m.NLayers(),
		"n_iterations":       m.NIter,
		"loss":               m.Loss,
		"hidden_layer_sizes": append([]int(nil), m.HiddenLayerSizes...),
	}
}

func (m *MLP) getParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes":  append([]int(nil), m.HiddenLayerSizes...),
		"activation":          "relu",
		"solver":              "adam",
		"alpha":               m.Alpha,
		"learning_rate_init":  m.LearningRateInit,
		"batch_size":          m.BatchSize,
		"max_iter":            m.MaxIter,
		"tol":                 m.Tol,
		"n_iter_no_change":    m.NIterNoChange,
		"early_stopping":      m.EarlyStopping,
		"validation_fraction": m.ValidationFraction,
		"random_state":        m.RandomState,
	}
}
