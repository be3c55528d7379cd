package registry

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/linear"
	"github.com/YuminosukeSato/eduinsight/metrics"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
	"github.com/YuminosukeSato/eduinsight/preprocessing"
	"github.com/YuminosukeSato/eduinsight/sklearn/naive_bayes"
	"github.com/YuminosukeSato/eduinsight/sklearn/neighbors"
	"github.com/YuminosukeSato/eduinsight/sklearn/neural_network"
	"github.com/YuminosukeSato/eduinsight/sklearn/svm"
	"github.com/YuminosukeSato/eduinsight/sklearn/tree"
	"github.com/YuminosukeSato/eduinsight/student"
)

// TrainConfig holds the split and hyper-parameters used by Train.
type TrainConfig struct {
	TestSize float64
	Seed     int64

	NNeighbors          int
	SVMC                float64
	TreeMaxDepth        int
	TreeMinSamplesSplit int

	// HiddenLayers and MaxIter configure both neural networks.
	HiddenLayers []int
	MaxIter      int
}

// DefaultTrainConfig returns the production settings.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestSize:            0.2,
		Seed:                42,
		NNeighbors:          5,
		SVMC:                1.0,
		TreeMaxDepth:        5,
		TreeMinSamplesSplit: 20,
		HiddenLayers:        []int{100, 50, 25},
		MaxIter:             500,
	}
}

// SplitSize is the number of rows on each side of a split.
type SplitSize struct {
	Train int `json:"train"`
	Test  int `json:"test"`
}

// Evaluation summarises one trained model.
type Evaluation struct {
	Model      string                        `json:"model"`
	Train      Metrics                       `json:"train"`
	Test       Metrics                       `json:"test"`
	Report     *metrics.ClassificationReport `json:"classification_report,omitempty"`
	DurationMs int64                         `json:"duration_ms"`
}

// TrainReport is returned by Train.
type TrainReport struct {
	Samples             int          `json:"samples"`
	ClassificationSplit SplitSize    `json:"classification_split"`
	RegressionSplit     SplitSize    `json:"regression_split"`
	Models              []Evaluation `json:"models"`
}

type estimator interface {
	model.Estimator
	model.Predictor
	model.ParameterGetter
}

type job struct {
	name       string
	est        estimator
	classifier bool
}

// Train fits every model on td, concurrently, and evaluates each on its
// held-out split. Classifiers use a stratified split on the performance
// label; regressors use a random split on G3.
func Train(ctx context.Context, td *student.TrainingData, cfg TrainConfig) (*Models, *TrainReport, error) {
	logger := log.GetLoggerWithName("registry")
	if td == nil || td.X == nil || len(td.Labels) == 0 {
		return nil, nil, errors.NewModelError("registry.Train", "empty data", errors.ErrEmptyData)
	}

	clfSplit, err := preprocessing.StratifiedSplit(td.X, td.Labels, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "classification split")
	}
	regSplit, err := preprocessing.TrainTestSplit(td.X, td.Grades, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, errors.Wrap(err, "regression split")
	}

	m := newModels()
	m.Linear = linear.NewLinearRegression()
	m.NB = naive_bayes.NewGaussianNB()
	m.KNN = neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(cfg.NNeighbors))
	m.SVM = svm.NewSVC(svm.WithC(cfg.SVMC), svm.WithProbability(true), svm.WithRandomState(cfg.Seed))
	m.Tree = tree.NewDecisionTreeClassifier(
		tree.WithCriterion("gini"),
		tree.WithMaxDepth(cfg.TreeMaxDepth),
		tree.WithMinSamplesSplit(cfg.TreeMinSamplesSplit),
		tree.WithRandomState(cfg.Seed),
	)
	annOpts := []neural_network.Option{
		neural_network.WithHiddenLayerSizes(cfg.HiddenLayers...),
		neural_network.WithMaxIter(cfg.MaxIter),
		neural_network.WithEarlyStopping(true, 0.1),
		neural_network.WithRandomState(cfg.Seed),
	}
	m.ANNReg = neural_network.NewMLPRegressor(annOpts...)
	m.ANNClf = neural_network.NewMLPClassifier(annOpts...)

	jobs := []job{
		{LinearRegression, m.Linear, false},
		{NaiveBayes, m.NB, true},
		{KNN, m.KNN, true},
		{SVM, m.SVM, true},
		{DecisionTree, m.Tree, true},
		{ANNRegression, m.ANNReg, false},
		{ANNClassification, m.ANNClf, true},
	}

	evals := make([]Evaluation, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			split := regSplit
			if j.classifier {
				split = clfSplit
			}
			return errors.SafeExecute("registry.Train."+j.name, func() error {
				logger.Debug("training model", log.ModelNameKey, j.name, "params", j.est.GetParams())
				start := time.Now()
				if err := j.est.Fit(split.XTrain, split.YTrain); err != nil {
					return errors.Wrapf(err, "train %s", j.name)
				}
				if !j.est.IsFitted() {
					return errors.NewNotFittedError(j.name, "Fit")
				}
				ev, err := evaluate(j, split)
				if err != nil {
					return errors.Wrapf(err, "evaluate %s", j.name)
				}
				ev.DurationMs = time.Since(start).Milliseconds()
				evals[i] = ev
				logger.Info("model trained",
					log.ModelNameKey, j.name,
					log.OperationKey, log.OperationFit,
					log.SamplesKey, split.YTrain.Len(),
					log.DurationMsKey, ev.DurationMs,
				)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, ev := range evals {
		m.Metrics[ev.Model] = ev.Train
	}
	report := &TrainReport{
		Samples:             len(td.Labels),
		ClassificationSplit: SplitSize{Train: clfSplit.YTrain.Len(), Test: clfSplit.YTest.Len()},
		RegressionSplit:     SplitSize{Train: regSplit.YTrain.Len(), Test: regSplit.YTest.Len()},
		Models:              evals,
	}
	return m, report, nil
}

func predictVec(est model.Predictor, X mat.Matrix) (*mat.VecDense, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.ColumnVector(pred)
}

func evaluate(j job, split *preprocessing.Split) (Evaluation, error) {
	ev := Evaluation{Model: j.name}
	trainPred, err := predictVec(j.est, split.XTrain)
	if err != nil {
		return ev, err
	}
	testPred, err := predictVec(j.est, split.XTest)
	if err != nil {
		return ev, err
	}

	if j.classifier {
		acc, err := metrics.Accuracy(split.YTrain, trainPred)
		if err != nil {
			return ev, err
		}
		ev.Train = Metrics{TrainAccuracy: acc}
		testAcc, err := metrics.Accuracy(split.YTest, testPred)
		if err != nil {
			return ev, err
		}
		ev.Test = Metrics{"accuracy": testAcc}
		if ev.Report, err = metrics.NewClassificationReport(split.YTest, testPred, student.LabelNames); err != nil {
			return ev, err
		}
		return ev, nil
	}

	train := regressionMetrics(split.YTrain, trainPred)
	ev.Train = Metrics{}
	for key, name := range map[string]string{"mse": TrainMSE, "r2_score": TrainR2, "mae": TrainMAE} {
		if v, ok := train[key]; ok {
			ev.Train[name] = v
		}
	}
	ev.Test = regressionMetrics(split.YTest, testPred)
	return ev, nil
}

// regressionMetrics returns mse, rmse, r2_score and mae. A metric that cannot
// be computed (R² on a constant target) is left out.
func regressionMetrics(yTrue, yPred *mat.VecDense) Metrics {
	out := Metrics{}
	if mse, err := metrics.MSE(yTrue, yPred); err == nil {
		out["mse"] = mse
		out["rmse"] = math.Sqrt(mse)
	}
	if r2, err := metrics.R2Score(yTrue, yPred); err == nil {
		out["r2_score"] = r2
	}
	if mae, err := metrics.MAE(yTrue, yPred); err == nil {
		out["mae"] = mae
	}
	return out
}
