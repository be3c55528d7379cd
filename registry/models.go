// Package registry trains, persists and serves the EduInsight models.
//
// A Registry holds one fitted instance of each model behind a RWMutex.
// Prediction methods take a read lock only long enough to pick up the model
// pointer; a retrain builds a complete new set and swaps it in at once.
package registry

import (
	"path/filepath"

	"github.com/YuminosukeSato/eduinsight/linear"
	"github.com/YuminosukeSato/eduinsight/sklearn/naive_bayes"
	"github.com/YuminosukeSato/eduinsight/sklearn/neighbors"
	"github.com/YuminosukeSato/eduinsight/sklearn/neural_network"
	"github.com/YuminosukeSato/eduinsight/sklearn/svm"
	"github.com/YuminosukeSato/eduinsight/sklearn/tree"
)

// Model names. They double as artifact file stems and API keys.
const (
	LinearRegression  = "linear_regression"
	NaiveBayes        = "naive_bayes"
	KNN               = "knn"
	SVM               = "svm"
	DecisionTree      = "decision_tree"
	ANNRegression     = "ann_regression"
	ANNClassification = "ann_classification"
)

// Names lists every model in load order.
var Names = []string{
	LinearRegression,
	NaiveBayes,
	KNN,
	SVM,
	DecisionTree,
	ANNRegression,
	ANNClassification,
}

// Metrics are the training-set scores stored with a model:
// train_accuracy for classifiers, train_mse/train_r2/train_mae for regressors.
type Metrics map[string]float64

// Metric keys.
const (
	TrainAccuracy = "train_accuracy"
	TrainMSE      = "train_mse"
	TrainR2       = "train_r2"
	TrainMAE      = "train_mae"
)

// Models is one complete set of fitted models. A nil field means the model is
// not available.
type Models struct {
	Linear *linear.LinearRegression
	NB     *naive_bayes.GaussianNB
	KNN    *neighbors.KNeighborsClassifier
	SVM    *svm.SVC
	Tree   *tree.DecisionTreeClassifier
	ANNReg *neural_network.MLPRegressor
	ANNClf *neural_network.MLPClassifier

	Metrics map[string]Metrics
}

func newModels() *Models {
	return &Models{Metrics: make(map[string]Metrics, len(Names))}
}

// loaded reports whether the named model is present.
func (m *Models) loaded(name string) bool {
	if m == nil {
		return false
	}
	switch name {
	case LinearRegression:
		return m.Linear != nil
	case NaiveBayes:
		return m.NB != nil
	case KNN:
		return m.KNN != nil
	case SVM:
		return m.SVM != nil
	case DecisionTree:
		return m.Tree != nil
	case ANNRegression:
		return m.ANNReg != nil
	case ANNClassification:
		return m.ANNClf != nil
	}
	return false
}

// Loaded returns the names of the present models in load order.
func (m *Models) Loaded() []string {
	out := make([]string, 0, len(Names))
	for _, name := range Names {
		if m.loaded(name) {
			out = append(out, name)
		}
	}
	return out
}

// artifact is the gob payload written per model.
type artifact[T any] struct {
	Model    T
	Metrics  Metrics
	Features []string
}

// ArtifactPath returns the gob file of the named model under dir.
func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, name+".gob")
}

// WeightsPath returns the JSON weights file of the linear model under dir.
func WeightsPath(dir string) string {
	return filepath.Join(dir, LinearRegression+".json")
}
