// Package tree implements a CART decision tree classifier.
//
// The tree is stored as a flat slice of nodes so that it can be gob-encoded
// and walked without recursion when tracing a decision path.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// LeafFeature marks a node without a split.
const LeafFeature = -1

// Node is one node of a fitted tree.
type Node struct {
	Feature   int     // split feature, LeafFeature for leaves
	Threshold float64 // samples with x[Feature] <= Threshold go left
	Left      int
	Right     int
	Value     []float64 // per-class sample counts
	NSamples  int
	Impurity  float64
	Depth     int
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool { return n.Feature == LeafFeature }

// DecisionTreeClassifier is a CART classifier compatible with scikit-learn's
// DecisionTreeClassifier defaults.
type DecisionTreeClassifier struct {
	State *model.StateManager

	// Hyperparameters
	Criterion       string // "gini" or "entropy"
	MaxDepth        int    // <= 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     int64 // < 0 keeps feature order fixed

	// Learned parameters
	Nodes              []Node
	Labels             []int
	FeatureImportances []float64
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity criterion ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.Criterion = criterion }
}

// WithMaxDepth sets the maximum depth of the tree.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.MinSamplesLeaf = n }
}

// WithRandomState sets the seed used to permute candidate features.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.RandomState = seed }
}

var (
	_ model.Classifier      = (*DecisionTreeClassifier)(nil)
	_ model.ParameterGetter = (*DecisionTreeClassifier)(nil)
)

// NewDecisionTreeClassifier creates a classifier with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       "gini",
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.State.IsFitted()
}

// Classes returns the sorted class labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.Labels...)
}

func (dt *DecisionTreeClassifier) validateParams() error {
	switch dt.Criterion {
	case "gini", "entropy":
	default:
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.Criterion)
	}
	if dt.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.MinSamplesSplit)
	}
	if dt.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.MinSamplesLeaf)
	}
	return nil
}

// builder は学習中だけ使う作業領域
type builder struct {
	dt       *DecisionTreeClassifier
	X        [][]float64
	y        []int // class index
	nClasses int
	features []int
	rng      *rand.Rand
	gains    []float64
}

// Fit builds the tree from X (n×p) and the label column y (n×1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry, _ := y.Dims(); ry != r {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", r, ry, 0)
	}
	labels, classes, err := model.ClassLabels("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}

	index := model.ClassIndex(classes)
	b := &builder{
		dt:       dt,
		X:        make([][]float64, r),
		y:        make([]int, r),
		nClasses: len(classes),
		features: make([]int, c),
		gains:    make([]float64, c),
	}
	for i := 0; i < r; i++ {
		b.X[i] = model.RowSlice(X, i)
		b.y[i] = index[labels[i]]
	}
	for j := range b.features {
		b.features[j] = j
	}
	if dt.RandomState >= 0 {
		b.rng = rand.New(rand.NewSource(dt.RandomState))
	}

	samples := make([]int, r)
	for i := range samples {
		samples[i] = i
	}

	dt.Nodes = dt.Nodes[:0]
	dt.Labels = classes
	b.grow(samples, 0)

	total := 0.0
	for _, g := range b.gains {
		total += g
	}
	dt.FeatureImportances = make([]float64, c)
	if total > 0 {
		for j, g := range b.gains {
			dt.FeatureImportances[j] = g / total
		}
	}

	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetDimensions(c, r)
	dt.State.SetFitted()
	return nil
}

func (b *builder) counts(samples []int) []float64 {
	counts := make([]float64, b.nClasses)
	for _, i := range samples {
		counts[b.y[i]]++
	}
	return counts
}

func (b *builder) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	switch b.dt.Criterion {
	case "entropy":
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / n
			g -= p * p
		}
		return g
	}
}

// grow appends the node for samples and, if it splits, its subtrees.
// Returns the node id.
func (b *builder) grow(samples []int, depth int) int {
	dt := b.dt
	counts := b.counts(samples)
	n := len(samples)
	imp := b.impurity(counts, float64(n))

	id := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, Node{
		Feature:  LeafFeature,
		Left:     -1,
		Right:    -1,
		Value:    counts,
		NSamples: n,
		Impurity: imp,
		Depth:    depth,
	})

	if (dt.MaxDepth > 0 && depth >= dt.MaxDepth) ||
		n < dt.MinSamplesSplit ||
		n < 2*dt.MinSamplesLeaf ||
		imp <= 1e-12 {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(samples, imp)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range samples {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.gains[feature] += math.Max(gain, 0)

	leftID := b.grow(left, depth+1)
	rightID := b.grow(right, depth+1)

	node := &dt.Nodes[id]
	node.Feature = feature
	node.Threshold = threshold
	node.Left = leftID
	node.Right = rightID
	return id
}

// bestSplit scans every feature for the threshold with the largest weighted
// impurity decrease.
func (b *builder) bestSplit(samples []int, parentImp float64) (feature int, threshold, gain float64, ok bool) {
	n := len(samples)
	minLeaf := b.dt.MinSamplesLeaf

	order := b.features
	if b.rng != nil {
		order = b.rng.Perm(len(b.features))
	}

	// 改善量ゼロでも分割する（XOR のような配置を学習するため）
	bestGain := math.Inf(-1)
	sorted := make([]int, n)
	for _, f := range order {
		copy(sorted, samples)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		left := make([]float64, b.nClasses)
		right := b.counts(sorted)
		for k := 0; k < n-1; k++ {
			cls := b.y[sorted[k]]
			left[cls]++
			right[cls]--

			nl := k + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			xv, xn := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if xn <= xv+1e-12 {
				continue
			}
			g := float64(n)*parentImp -
				float64(nl)*b.impurity(left, float64(nl)) -
				float64(nr)*b.impurity(right, float64(nr))
			if g > bestGain+1e-12 {
				bestGain = g
				feature = f
				threshold = xv + (xn-xv)/2
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func (dt *DecisionTreeClassifier) leaf(x []float64) int {
	id := 0
	for !dt.Nodes[id].IsLeaf() {
		node := dt.Nodes[id]
		if x[node.Feature] <= node.Threshold {
			id = node.Left
		} else {
			id = node.Right
		}
	}
	return id
}

func (dt *DecisionTreeClassifier) checkInput(method string, X mat.Matrix) error {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return dt.State.RequireFeatures("DecisionTreeClassifier."+method, c)
}

// PredictProba returns the class distribution of the leaf reached by each row.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	proba := mat.NewDense(r, len(dt.Labels), nil)
	for i := 0; i < r; i++ {
		node := dt.Nodes[dt.leaf(model.RowSlice(X, i))]
		for j, v := range node.Value {
			proba.Set(i, j, v/float64(node.NSamples))
		}
	}
	return proba, nil
}

// Predict returns the majority class of the leaf reached by each row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ArgmaxRows(proba, dt.Labels), nil
}

// Score returns the mean accuracy on X and y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(yTrue, pred.(*mat.VecDense))
}

// PathStep is one internal node visited while classifying a sample.
type PathStep struct {
	Node      int
	Feature   int
	Threshold float64
	Value     float64 // the sample's value for Feature
	Left      bool    // Value <= Threshold
}

// Condition formats the step as "name <= 12.50" or "name > 12.50".
func (s PathStep) Condition(name string) string {
	if s.Left {
		return fmt.Sprintf("%s <= %.2f", name, s.Threshold)
	}
	return fmt.Sprintf("%s > %.2f", name, s.Threshold)
}

// DecisionPath returns the internal nodes visited by x, root first.
func (dt *DecisionTreeClassifier) DecisionPath(x []float64) ([]PathStep, error) {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", "DecisionPath"); err != nil {
		return nil, err
	}
	if err := dt.State.RequireFeatures("DecisionTreeClassifier.DecisionPath", len(x)); err != nil {
		return nil, err
	}
	var steps []PathStep
	id := 0
	for !dt.Nodes[id].IsLeaf() {
		node := dt.Nodes[id]
		left := x[node.Feature] <= node.Threshold
		steps = append(steps, PathStep{
			Node:      id,
			Feature:   node.Feature,
			Threshold: node.Threshold,
			Value:     x[node.Feature],
			Left:      left,
		})
		if left {
			id = node.Left
		} else {
			id = node.Right
		}
	}
	return steps, nil
}

// GetFeatureImportances returns the normalized total impurity decrease per
// feature. It is all zeros for a tree that never split.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.FeatureImportances...)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for _, n := range dt.Nodes {
		if n.Depth > depth {
			depth = n.Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for _, n := range dt.Nodes {
		if n.IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.Criterion,
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"random_state":      dt.RandomState,
	}
}

// SetParams updates hyperparameters by name. Unknown names are rejected.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		switch key {
		case "criterion":
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", v)
			}
			dt.Criterion = s
		case "max_depth", "min_samples_split", "min_samples_leaf", "random_state":
			n, ok := v.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", v)
			}
			switch key {
			case "max_depth":
				dt.MaxDepth = n
			case "min_samples_split":
				dt.MinSamplesSplit = n
			case "min_samples_leaf":
				dt.MinSamplesLeaf = n
			default:
				dt.RandomState = int64(n)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", v)
		}
	}
	return dt.validateParams()
}

// ExportText renders the tree in the same layout as scikit-learn's
// export_text. classNames may be nil, in which case class labels are printed.
func (dt *DecisionTreeClassifier) ExportText(featureNames, classNames []string) (string, error) {
	if err := dt.State.RequireFitted("DecisionTreeClassifier", "ExportText"); err != nil {
		return "", err
	}
	nFeatures, _ := dt.State.GetDimensions()
	if featureNames != nil && len(featureNames) != nFeatures {
		return "", errors.NewDimensionError("DecisionTreeClassifier.ExportText", nFeatures, len(featureNames), 0)
	}
	if classNames != nil && len(classNames) != len(dt.Labels) {
		return "", errors.NewDimensionError("DecisionTreeClassifier.ExportText", len(dt.Labels), len(classNames), 0)
	}

	name := func(f int) string {
		if featureNames != nil {
			return featureNames[f]
		}
		return fmt.Sprintf("feature_%d", f)
	}
	class := func(node Node) string {
		best := 0
		for j, v := range node.Value {
			if v > node.Value[best] {
				best = j
			}
		}
		if classNames != nil {
			return classNames[best]
		}
		return fmt.Sprintf("%d", dt.Labels[best])
	}

	var sb strings.Builder
	var walk func(id, depth int)
	walk = func(id, depth int) {
		indent := strings.Repeat("|   ", depth) + "|--- "
		node := dt.Nodes[id]
		if node.IsLeaf() {
			fmt.Fprintf(&sb, "%sclass: %s\n", indent, class(node))
			return
		}
		fmt.Fprintf(&sb, "%s%s <= %.2f\n", indent, name(node.Feature), node.Threshold)
		walk(node.Left, depth+1)
		fmt.Fprintf(&sb, "%s%s >  %.2f\n", indent, name(node.Feature), node.Threshold)
		walk(node.Right, depth+1)
	}
	walk(0, 0)
	return sb.String(), nil
}

// String returns a short description of the classifier.
func (dt *DecisionTreeClassifier) String() string {
	if !dt.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, depth=%d, leaves=%d)",
		dt.Criterion, dt.MaxDepth, dt.GetDepth(), dt.GetNLeaves())
}
