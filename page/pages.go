package page

import (
	"context"

	"github.com/YuminosukeSato/eduinsight/insight"
	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

// Predictor is the part of the API client the model pages use.
// *client.Client satisfies it.
type Predictor interface {
	PredictLinearRegression(ctx context.Context, f student.Features) (*registry.GradePrediction, error)
	PredictNaiveBayes(ctx context.Context, f student.Features) (*registry.RiskAssessment, error)
	PredictKNN(ctx context.Context, f student.Features, k int) (*registry.NeighborsResult, error)
	PredictSVM(ctx context.Context, f student.Features) (*registry.Classification, error)
	PredictDecisionTree(ctx context.Context, f student.Features) (*registry.DecisionPath, error)
	PredictANN(ctx context.Context, f student.Features, periods int) (*registry.GradeForecast, error)
}

// Form names of the model pages.
const (
	LinearRegressionForm = "linear-regression"
	NaiveBayesForm       = "naive-bayes"
	KNNForm              = "knn"
	SVMForm              = "svm"
	TreePathForm         = "tree-path"
	GradeForecastForm    = "grade-forecast"
)

// backgroundFixed are the attributes the grade and risk pages do not ask for.
var backgroundFixed = map[string]string{
	"traveltime": "1",
	"famrel":     "4",
	"freetime":   "3",
	"goout":      "2",
	"Dalc":       "1",
	"Walc":       "1",
	"health":     "3",
}

// LinearRegressionPage predicts the final grade from eight attributes.
var LinearRegressionPage = Form{
	Name:     LinearRegressionForm,
	Required: []string{"age", "studytime", "absences", "G1", "G2", "failures", "Medu", "Fedu"},
	Fixed:    backgroundFixed,
	Failure:  "Failed to get prediction. Make sure the backend server is running.",
}

// NaiveBayesPage assesses risk from five required attributes; parental
// education and failures are optional.
var NaiveBayesPage = Form{
	Name:     NaiveBayesForm,
	Required: []string{"age", "studytime", "absences", "G1", "G2"},
	Optional: map[string]string{"Medu": "2", "Fedu": "2", "failures": "0"},
	Fixed:    backgroundFixed,
	Failure:  "Failed to get risk assessment. Make sure the backend server is running.",
}

// KNNPage finds similar students from every attribute.
var KNNPage = Form{
	Name:     KNNForm,
	Required: student.FeatureNames,
}

// SVMPage classifies from every attribute.
var SVMPage = Form{
	Name:     SVMForm,
	Required: student.FeatureNames,
}

// TreePathPage explains the trained tree's decision from every attribute.
var TreePathPage = Form{
	Name:     TreePathForm,
	Required: student.FeatureNames,
}

// GradeForecastPage projects the network's grade from every attribute.
var GradeForecastPage = Form{
	Name:     GradeForecastForm,
	Required: student.FeatureNames,
}

// DecisionTreePage is the local decision-path classifier.
var DecisionTreePage = Form{
	Name:     insight.DecisionForm,
	Required: insight.DecisionFields,
}

// TrendPage is the local trend-curve generator.
var TrendPage = Form{
	Name:     insight.ForecastForm,
	Required: insight.ForecastFields,
}

// withFeatures parses the form strictly and calls predict. Input that is
// not a number never reaches the API.
func withFeatures[T any](v map[string]string, predict func(student.Features) (*T, error)) (*T, error) {
	f, err := student.ParseForm(v)
	if err != nil {
		return nil, err
	}
	return predict(f)
}

// LinearRegression returns the grade prediction page.
func LinearRegression(p Predictor) *Controller[registry.GradePrediction] {
	return NewController(LinearRegressionPage, func(ctx context.Context, v map[string]string) (*registry.GradePrediction, error) {
		return withFeatures(v, func(f student.Features) (*registry.GradePrediction, error) {
			return p.PredictLinearRegression(ctx, f)
		})
	})
}

// NaiveBayes returns the risk assessment page.
func NaiveBayes(p Predictor) *Controller[registry.RiskAssessment] {
	return NewController(NaiveBayesPage, func(ctx context.Context, v map[string]string) (*registry.RiskAssessment, error) {
		return withFeatures(v, func(f student.Features) (*registry.RiskAssessment, error) {
			return p.PredictNaiveBayes(ctx, f)
		})
	})
}

// KNN returns the similar-students page. k is sent with every request.
func KNN(p Predictor, k int) *Controller[registry.NeighborsResult] {
	return NewController(KNNPage, func(ctx context.Context, v map[string]string) (*registry.NeighborsResult, error) {
		return withFeatures(v, func(f student.Features) (*registry.NeighborsResult, error) {
			return p.PredictKNN(ctx, f, k)
		})
	})
}

// SVM returns the classification page.
func SVM(p Predictor) *Controller[registry.Classification] {
	return NewController(SVMPage, func(ctx context.Context, v map[string]string) (*registry.Classification, error) {
		return withFeatures(v, func(f student.Features) (*registry.Classification, error) {
			return p.PredictSVM(ctx, f)
		})
	})
}

// TreePath returns the trained-tree explanation page.
func TreePath(p Predictor) *Controller[registry.DecisionPath] {
	return NewController(TreePathPage, func(ctx context.Context, v map[string]string) (*registry.DecisionPath, error) {
		return withFeatures(v, func(f student.Features) (*registry.DecisionPath, error) {
			return p.PredictDecisionTree(ctx, f)
		})
	})
}

// GradeForecast returns the network forecast page.
func GradeForecast(p Predictor, periods int) *Controller[registry.GradeForecast] {
	return NewController(GradeForecastPage, func(ctx context.Context, v map[string]string) (*registry.GradeForecast, error) {
		return withFeatures(v, func(f student.Features) (*registry.GradeForecast, error) {
			return p.PredictANN(ctx, f, periods)
		})
	})
}

// DecisionTree returns the local decision-path page. It makes no request.
func DecisionTree() *Controller[insight.DecisionResult] {
	return NewController(DecisionTreePage, func(_ context.Context, v map[string]string) (*insight.DecisionResult, error) {
		res, err := insight.ClassifyForm(v)
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
}

// Trend returns the local trend forecast page. It makes no request.
func Trend() *Controller[insight.Trend] {
	return NewController(TrendPage, func(_ context.Context, v map[string]string) (*insight.Trend, error) {
		t, err := insight.ForecastFromForm(v)
		if err != nil {
			return nil, err
		}
		return &t, nil
	})
}
