package registry

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/student"
)

// PredictRequest is the body of every /api/predict call. K applies to knn and
// Periods to the ANN forecast; nil selects DefaultK and DefaultPeriods.
type PredictRequest struct {
	Features student.Features `json:"features"`
	K        *int             `json:"k,omitempty"`
	Periods  *int             `json:"periods,omitempty"`
}

// KOrDefault returns the requested k or DefaultK.
func (p PredictRequest) KOrDefault() int {
	if p.K == nil {
		return DefaultK
	}
	return *p.K
}

// PeriodsOrDefault returns the requested periods or DefaultPeriods.
func (p PredictRequest) PeriodsOrDefault() int {
	if p.Periods == nil {
		return DefaultPeriods
	}
	return *p.Periods
}

// Request parameter defaults and bounds.
const (
	DefaultK       = 5
	DefaultPeriods = 4
	MaxPeriods     = 24
	MaxGrade       = 20.0
	TopFeatures    = 5
)

func input(features student.Features) (*mat.Dense, error) {
	if err := features.Validate(); err != nil {
		return nil, err
	}
	return mat.NewDense(1, student.NumFeatures, features.Vector()), nil
}

// labelText maps a class code to its label, or to the code itself when unknown.
func labelText(code int) string {
	if l, ok := student.LabelFromCode(code); ok {
		return string(l)
	}
	return strconv.Itoa(code)
}

// labelled turns one probability row into a label-keyed map and returns the
// most probable class with its probability. Ties go to the lower class.
func labelled(proba []float64, classes []int) (map[string]float64, int, float64) {
	out := make(map[string]float64, len(classes))
	best := 0
	for i, p := range proba {
		out[labelText(classes[i])] = p
		if p > proba[best] {
			best = i
		}
	}
	return out, classes[best], proba[best]
}

func clipGrade(v float64) float64 {
	return errors.ClipValue(v, 0, MaxGrade)
}

// Coefficient is one named linear coefficient.
type Coefficient struct {
	Feature string
	Value   float64
}

// Coefficients encode as a JSON object that keeps their order.
type Coefficients []Coefficient

// MarshalJSON implements json.Marshaler.
func (c Coefficients) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, coef := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(coef.Feature)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(coef.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coefficients) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.NewValueError("Coefficients.UnmarshalJSON", "expected a JSON object")
	}
	out := Coefficients{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, Coefficient{Feature: key, Value: v})
	}
	*c = out
	return nil
}

// LinearModelInfo is the coefficient summary of the linear model.
type LinearModelInfo struct {
	Intercept   float64      `json:"intercept"`
	TopFeatures Coefficients `json:"top_features"`
}

// GradePrediction is the linear regression payload.
type GradePrediction struct {
	PredictedGrade float64         `json:"predicted_grade"`
	ModelInfo      LinearModelInfo `json:"model_info"`
	Metrics        Metrics         `json:"metrics"`
}

// PredictGrade predicts G3 with the linear model, clipped to [0, 20].
func (r *Registry) PredictGrade(features student.Features) (*GradePrediction, error) {
	m := r.current()
	if m.Linear == nil {
		return nil, errors.NewModelUnavailableError(LinearRegression)
	}
	X, err := input(features)
	if err != nil {
		return nil, err
	}
	pred, err := m.Linear.Predict(X)
	if err != nil {
		return nil, err
	}
	weights := m.Linear.GetWeights()
	top := make(Coefficients, 0, TopFeatures)
	for i := 0; i < len(weights) && i < TopFeatures; i++ {
		top = append(top, Coefficient{Feature: student.FeatureNames[i], Value: weights[i]})
	}
	return &GradePrediction{
		PredictedGrade: clipGrade(pred.At(0, 0)),
		ModelInfo:      LinearModelInfo{Intercept: m.Linear.GetIntercept(), TopFeatures: top},
		Metrics:        m.Metrics[LinearRegression],
	}, nil
}

// GradeFit predicts every row of td with the linear model. It backs the
// predicted-vs-actual chart.
func (r *Registry) GradeFit(td *student.TrainingData) (actual, predicted []float64, err error) {
	m := r.current()
	if m.Linear == nil {
		return nil, nil, errors.NewModelUnavailableError(LinearRegression)
	}
	vec, err := predictVec(m.Linear, td.X)
	if err != nil {
		return nil, nil, err
	}
	predicted = make([]float64, vec.Len())
	for i := range predicted {
		predicted[i] = clipGrade(vec.AtVec(i))
	}
	return append([]float64(nil), td.Grades...), predicted, nil
}

// RiskAssessment is the naive Bayes payload.
type RiskAssessment struct {
	PredictedPerformance     string             `json:"predicted_performance"`
	RiskLevel                string             `json:"risk_level"`
	RiskProbabilities        map[string]float64 `json:"risk_probabilities"`
	PerformanceProbabilities map[string]float64 `json:"performance_probabilities"`
	Confidence               float64            `json:"confidence"`
}

// AssessRisk classifies with naive Bayes and folds the class probabilities
// into risk levels.
func (r *Registry) AssessRisk(features student.Features) (*RiskAssessment, error) {
	m := r.current()
	if m.NB == nil {
		return nil, errors.NewModelUnavailableError(NaiveBayes)
	}
	X, err := input(features)
	if err != nil {
		return nil, err
	}
	proba, err := m.NB.PredictProba(X)
	if err != nil {
		return nil, err
	}
	classes := m.NB.Classes()
	row := model.RowSlice(proba, 0)
	perf, best, conf := labelled(row, classes)

	risk := make(map[string]float64, len(classes))
	var order []string
	for i, c := range classes {
		level := "Unknown"
		if l, ok := student.LabelFromCode(c); ok {
			level = string(l.Risk())
		}
		if _, seen := risk[level]; !seen {
			order = append(order, level)
		}
		risk[level] += row[i]
	}
	primary := order[0]
	for _, level := range order[1:] {
		if risk[level] > risk[primary] {
			primary = level
		}
	}

	predicted := "Unknown"
	if l, ok := student.LabelFromCode(best); ok {
		predicted = string(l)
	}
	return &RiskAssessment{
		PredictedPerformance:     predicted,
		RiskLevel:                primary,
		RiskProbabilities:        risk,
		PerformanceProbabilities: perf,
		Confidence:               conf,
	}, nil
}

// Neighbor is one of the nearest training students.
type Neighbor struct {
	Rank             int              `json:"rank"`
	Distance         float64          `json:"distance"`
	PerformanceLabel string           `json:"performance_label"`
	Features         student.Features `json:"features"`
}

// NeighborsResult is the knn payload.
type NeighborsResult struct {
	PredictedLabel       string             `json:"predicted_label"`
	Confidence           float64            `json:"confidence"`
	Probabilities        map[string]float64 `json:"probabilities"`
	Neighbors            []string           `json:"neighbors"`
	Distances            []float64          `json:"distances"`
	NeighborDetails      []Neighbor         `json:"neighbor_details"`
	NeighborDistribution map[string]int     `json:"neighbor_distribution"`
	K                    int                `json:"k"`
}

// FindNeighbors returns the k most similar training students and the vote
// among them. k must be within 1..n_train.
func (r *Registry) FindNeighbors(features student.Features, k int) (*NeighborsResult, error) {
	m := r.current()
	if m.KNN == nil {
		return nil, errors.NewModelUnavailableError(KNN)
	}
	if n := m.KNN.NTrain(); k < 1 || k > n {
		return nil, errors.NewValidationError("k", "must be between 1 and "+strconv.Itoa(n), k)
	}
	X, err := input(features)
	if err != nil {
		return nil, err
	}
	dists, idx, err := m.KNN.KNeighbors(features.Vector(), k)
	if err != nil {
		return nil, err
	}
	proba, err := m.KNN.PredictProbaK(X, k)
	if err != nil {
		return nil, err
	}
	probs, best, conf := labelled(model.RowSlice(proba, 0), m.KNN.Classes())

	res := &NeighborsResult{
		PredictedLabel:       labelText(best),
		Confidence:           conf,
		Probabilities:        probs,
		Neighbors:            make([]string, len(idx)),
		Distances:            dists,
		NeighborDetails:      make([]Neighbor, len(idx)),
		NeighborDistribution: make(map[string]int),
		K:                    k,
	}
	for i, j := range idx {
		label := labelText(m.KNN.TrainLabel(j))
		feats, err := student.FromVector(m.KNN.TrainRow(j))
		if err != nil {
			return nil, err
		}
		res.Neighbors[i] = label
		res.NeighborDetails[i] = Neighbor{Rank: i + 1, Distance: dists[i], PerformanceLabel: label, Features: feats}
		res.NeighborDistribution[label]++
	}
	return res, nil
}

// Interpretation explains an SVM label to the user.
type Interpretation struct {
	Category       string `json:"category"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

var interpretations = map[string]Interpretation{
	string(student.Good): {
		Category:       "High Achiever",
		Description:    "Student is performing excellently",
		Recommendation: "Continue current study habits and consider peer tutoring",
	},
	string(student.Average): {
		Category:       "Moderate Performer",
		Description:    "Student has room for improvement",
		Recommendation: "Focus on weak areas and increase study time",
	},
	string(student.AtRisk): {
		Category:       "Needs Support",
		Description:    "Student requires immediate intervention",
		Recommendation: "Seek additional help and consider tutoring programs",
	},
}

// Interpret returns the interpretation of label.
func Interpret(label string) Interpretation {
	if in, ok := interpretations[label]; ok {
		return in
	}
	return Interpretation{
		Category:       "Unknown",
		Description:    "Performance level unclear",
		Recommendation: "Additional assessment needed",
	}
}

// Classification is the SVM payload.
type Classification struct {
	PredictedLabel      string             `json:"predicted_label"`
	Probabilities       map[string]float64 `json:"probabilities"`
	Confidence          float64            `json:"confidence"`
	DecisionFunction    []float64          `json:"decision_function"`
	SupportVectorsCount int                `json:"support_vectors_count"`
	Interpretation
}

// Classify predicts with the SVM and attaches its interpretation.
func (r *Registry) Classify(features student.Features) (*Classification, error) {
	m := r.current()
	if m.SVM == nil {
		return nil, errors.NewModelUnavailableError(SVM)
	}
	X, err := input(features)
	if err != nil {
		return nil, err
	}
	pred, err := m.SVM.Predict(X)
	if err != nil {
		return nil, err
	}
	proba, err := m.SVM.PredictProba(X)
	if err != nil {
		return nil, err
	}
	decision, err := m.SVM.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	probs, _, conf := labelled(model.RowSlice(proba, 0), m.SVM.Classes())
	label := labelText(int(pred.At(0, 0)))
	return &Classification{
		PredictedLabel:      label,
		Probabilities:       probs,
		Confidence:          conf,
		DecisionFunction:    model.RowSlice(decision, 0),
		SupportVectorsCount: m.SVM.SupportVectorCount(),
		Interpretation:      Interpret(label),
	}, nil
}

// PathRule is one split on the way to the leaf.
type PathRule struct {
	Feature   string  `json:"feature"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
	Condition string  `json:"condition"`
}

// FeatureImportance is one entry of the importance ranking.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// DecisionPath is the decision tree payload.
type DecisionPath struct {
	PredictedClass    string              `json:"predicted_class"`
	Probabilities     map[string]float64  `json:"probabilities"`
	Confidence        float64             `json:"confidence"`
	DecisionPath      []PathRule          `json:"decision_path"`
	PathLength        int                 `json:"path_length"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
}

// ExplainTree classifies with the decision tree and returns the rules it
// followed together with the five most important features.
func (r *Registry) ExplainTree(features student.Features) (*DecisionPath, error) {
	m := r.current()
	if m.Tree == nil {
		return nil, errors.NewModelUnavailableError(DecisionTree)
	}
	X, err := input(features)
	if err != nil {
		return nil, err
	}
	proba, err := m.Tree.PredictProba(X)
	if err != nil {
		return nil, err
	}
	steps, err := m.Tree.DecisionPath(features.Vector())
	if err != nil {
		return nil, err
	}
	probs, best, conf := labelled(model.RowSlice(proba, 0), m.Tree.Classes())

	rules := make([]PathRule, len(steps))
	for i, s := range steps {
		name := student.FeatureNames[s.Feature]
		rules[i] = PathRule{Feature: name, Threshold: s.Threshold, Value: s.Value, Condition: s.Condition(name)}
	}
	return &DecisionPath{
		PredictedClass:    labelText(best),
		Probabilities:     probs,
		Confidence:        conf,
		DecisionPath:      rules,
		PathLength:        len(rules),
		FeatureImportance: topImportances(m.Tree.GetFeatureImportances(), TopFeatures),
	}, nil
}

func topImportances(importances []float64, n int) []FeatureImportance {
	out := make([]FeatureImportance, len(importances))
	for i, v := range importances {
		out[i] = FeatureImportance{Feature: student.FeatureNames[i], Importance: v}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Improvement rates per period of the grade timeline.
var timelineRates = []struct {
	name string
	rate float64
}{
	{"optimistic", 0.15},
	{"realistic", 0.08},
	{"conservative", 0.03},
	{"no_improvement", 0},
}

// Timeline holds one grade series per improvement scenario, period 0 first.
type Timeline struct {
	Optimistic    []float64 `json:"optimistic"`
	Realistic     []float64 `json:"realistic"`
	Conservative  []float64 `json:"conservative"`
	NoImprovement []float64 `json:"no_improvement"`
}

func (t *Timeline) set(name string, series []float64) {
	switch name {
	case "optimistic":
		t.Optimistic = series
	case "realistic":
		t.Realistic = series
	case "conservative":
		t.Conservative = series
	default:
		t.NoImprovement = series
	}
}

// NetworkSummary describes the forecasting network.
type NetworkSummary struct {
	Layers     int `json:"layers"`
	Iterations int `json:"iterations"`
}

// GradeForecast is the ANN payload.
type GradeForecast struct {
	CurrentGrade float64        `json:"current_grade"`
	Periods      int            `json:"periods"`
	Timeline     Timeline       `json:"timeline"`
	PeriodLabels []string       `json:"period_labels"`
	NetworkInfo  NetworkSummary `json:"network_info"`
}

func (r *Registry) predictANN(m *Models, features student.Features) (float64, error) {
	X, err := input(features)
	if err != nil {
		return 0, err
	}
	pred, err := m.ANNReg.Predict(X)
	if err != nil {
		return 0, err
	}
	return clipGrade(pred.At(0, 0)), nil
}

// ForecastGrades predicts the current grade with the ANN and projects it
// over periods. Period p of a scenario with rate r is
// min(current + current*r*p, 20). periods must be within 1..MaxPeriods.
func (r *Registry) ForecastGrades(features student.Features, periods int) (*GradeForecast, error) {
	m := r.current()
	if m.ANNReg == nil {
		return nil, errors.NewModelUnavailableError(ANNRegression)
	}
	if periods < 1 || periods > MaxPeriods {
		return nil, errors.NewValidationError("periods", "must be between 1 and "+strconv.Itoa(MaxPeriods), periods)
	}
	current, err := r.predictANN(m, features)
	if err != nil {
		return nil, err
	}

	out := &GradeForecast{
		CurrentGrade: current,
		Periods:      periods,
		PeriodLabels: make([]string, periods+1),
		NetworkInfo:  NetworkSummary{Layers: m.ANNReg.NLayers(), Iterations: m.ANNReg.NIter},
	}
	for p := range out.PeriodLabels {
		out.PeriodLabels[p] = "Period " + strconv.Itoa(p)
	}
	for _, sc := range timelineRates {
		series := make([]float64, periods+1)
		series[0] = current
		for p := 1; p <= periods; p++ {
			series[p] = math.Min(current+current*sc.rate*float64(p), MaxGrade)
		}
		out.Timeline.set(sc.name, series)
	}
	return out, nil
}

// Scenario multiplies studytime and absences before predicting.
type Scenario struct {
	Name      string
	StudyTime float64
	Absences  float64
}

// Scenarios used by ForecastScenarios.
var Scenarios = []Scenario{
	{"optimistic", 1.2, 0.5},
	{"realistic", 1.1, 0.8},
	{"conservative", 1.05, 0.9},
	{"no_change", 1, 1},
}

// ScenarioForecast is the ANN scenario payload.
type ScenarioForecast struct {
	CurrentPrediction float64            `json:"current_prediction"`
	Scenarios         map[string]float64 `json:"scenarios"`
	BestCase          float64            `json:"best_case"`
	WorstCase         float64            `json:"worst_case"`
	Range             float64            `json:"range"`
}

// ForecastScenarios predicts the grade under each of Scenarios.
func (r *Registry) ForecastScenarios(features student.Features) (*ScenarioForecast, error) {
	m := r.current()
	if m.ANNReg == nil {
		return nil, errors.NewModelUnavailableError(ANNRegression)
	}
	current, err := r.predictANN(m, features)
	if err != nil {
		return nil, err
	}
	out := &ScenarioForecast{
		CurrentPrediction: current,
		Scenarios:         make(map[string]float64, len(Scenarios)),
		BestCase:          math.Inf(-1),
		WorstCase:         math.Inf(1),
	}
	for _, sc := range Scenarios {
		// 変更後の値は定義域の確認をしない
		modified := features.Clone()
		if v, ok := modified["studytime"]; ok {
			modified["studytime"] = v * sc.StudyTime
		}
		if v, ok := modified["absences"]; ok {
			modified["absences"] = v * sc.Absences
		}
		pred, err := m.ANNReg.Predict(mat.NewDense(1, student.NumFeatures, modified.Vector()))
		if err != nil {
			return nil, err
		}
		g := clipGrade(pred.At(0, 0))
		out.Scenarios[sc.Name] = g
		out.BestCase = math.Max(out.BestCase, g)
		out.WorstCase = math.Min(out.WorstCase, g)
	}
	out.Range = out.BestCase - out.WorstCase
	return out, nil
}
