package registry

import (
	"context"
	"os"
	"slices"
	"sync"

	"github.com/YuminosukeSato/eduinsight/core/model"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
	"github.com/YuminosukeSato/eduinsight/student"
)

// Registry serves the current model set.
type Registry struct {
	dir    string
	logger log.Logger

	mu     sync.RWMutex
	models *Models
}

// New returns an empty registry persisting under dir.
func New(dir string) *Registry {
	return &Registry{
		dir:    dir,
		logger: log.GetLoggerWithName("registry"),
		models: newModels(),
	}
}

// Dir returns the artifact directory.
func (r *Registry) Dir() string {
	return r.dir
}

// current returns the model set. The set itself is never mutated after swap.
func (r *Registry) current() *Models {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models
}

// Swap replaces the model set.
func (r *Registry) Swap(m *Models) {
	if m == nil {
		m = newModels()
	}
	r.mu.Lock()
	r.models = m
	r.mu.Unlock()
}

// Loaded returns the names of the available models.
func (r *Registry) Loaded() []string {
	return r.current().Loaded()
}

func loadArtifact[T any](path string, dst *T) (Metrics, error) {
	var a artifact[T]
	if err := model.LoadModel(&a, path); err != nil {
		return nil, err
	}
	if !slices.Equal(a.Features, student.FeatureNames) {
		return nil, errors.NewValueError("registry.Load", "artifact was trained on a different feature set")
	}
	*dst = a.Model
	return a.Metrics, nil
}

// Load reads every artifact present in the directory and swaps in the
// resulting set. Missing files are skipped; unreadable ones are logged and
// skipped. It returns the names of the models loaded.
func (r *Registry) Load() []string {
	m := newModels()
	load := func(name string, fn func(path string) (Metrics, error)) {
		path := ArtifactPath(r.dir, name)
		if _, err := os.Stat(path); err != nil {
			return
		}
		metrics, err := fn(path)
		if err != nil {
			r.logger.Warn("failed to load model",
				log.ModelNameKey, name,
				log.ArtifactPathKey, path,
				"error", err.Error(),
			)
			return
		}
		m.Metrics[name] = metrics
		r.logger.Debug("model loaded", log.ModelNameKey, name, log.OperationKey, log.OperationLoad)
	}

	load(LinearRegression, func(p string) (Metrics, error) { return loadArtifact(p, &m.Linear) })
	load(NaiveBayes, func(p string) (Metrics, error) { return loadArtifact(p, &m.NB) })
	load(KNN, func(p string) (Metrics, error) { return loadArtifact(p, &m.KNN) })
	load(SVM, func(p string) (Metrics, error) { return loadArtifact(p, &m.SVM) })
	load(DecisionTree, func(p string) (Metrics, error) { return loadArtifact(p, &m.Tree) })
	load(ANNRegression, func(p string) (Metrics, error) { return loadArtifact(p, &m.ANNReg) })
	load(ANNClassification, func(p string) (Metrics, error) { return loadArtifact(p, &m.ANNClf) })

	r.Swap(m)
	loaded := m.Loaded()
	r.logger.Info("models loaded", "count", len(loaded), "models", loaded)
	return loaded
}

func saveArtifact[T any](path string, mdl T, metrics Metrics) error {
	return model.SaveModel(&artifact[T]{
		Model:    mdl,
		Metrics:  metrics,
		Features: append([]string(nil), student.FeatureNames...),
	}, path)
}

// Save writes every available model to the directory, plus the linear
// regression weights as JSON.
func (r *Registry) Save() error {
	m := r.current()
	save := func(name string, fn func(path string) error) error {
		if !m.loaded(name) {
			return nil
		}
		path := ArtifactPath(r.dir, name)
		if err := fn(path); err != nil {
			return errors.Wrapf(err, "save %s", name)
		}
		r.logger.Debug("model saved",
			log.ModelNameKey, name,
			log.OperationKey, log.OperationSave,
			log.ArtifactPathKey, path,
		)
		return nil
	}

	steps := []struct {
		name string
		fn   func(string) error
	}{
		{LinearRegression, func(p string) error { return saveArtifact(p, m.Linear, m.Metrics[LinearRegression]) }},
		{NaiveBayes, func(p string) error { return saveArtifact(p, m.NB, m.Metrics[NaiveBayes]) }},
		{KNN, func(p string) error { return saveArtifact(p, m.KNN, m.Metrics[KNN]) }},
		{SVM, func(p string) error { return saveArtifact(p, m.SVM, m.Metrics[SVM]) }},
		{DecisionTree, func(p string) error { return saveArtifact(p, m.Tree, m.Metrics[DecisionTree]) }},
		{ANNRegression, func(p string) error { return saveArtifact(p, m.ANNReg, m.Metrics[ANNRegression]) }},
		{ANNClassification, func(p string) error { return saveArtifact(p, m.ANNClf, m.Metrics[ANNClassification]) }},
	}
	for _, s := range steps {
		if err := save(s.name, s.fn); err != nil {
			return err
		}
	}

	if m.Linear != nil {
		w, err := m.Linear.ExportWeights(student.FeatureNames)
		if err != nil {
			return errors.Wrap(err, "export linear regression weights")
		}
		if err := w.WriteFile(WeightsPath(r.dir)); err != nil {
			return err
		}
	}
	return nil
}

// Retrain trains a new set from ds, swaps it in and saves it.
func (r *Registry) Retrain(ctx context.Context, ds *student.Dataset, cfg TrainConfig) (*TrainReport, error) {
	td, err := ds.TrainingData()
	if err != nil {
		return nil, err
	}
	m, report, err := Train(ctx, td, cfg)
	if err != nil {
		return nil, err
	}
	r.Swap(m)
	if err := r.Save(); err != nil {
		return report, err
	}
	return report, nil
}

// Bootstrap loads the saved models. When none exist, trainOnStartup is set
// and the dataset file is present, it trains and saves a fresh set.
func (r *Registry) Bootstrap(ctx context.Context, datasetPath string, trainOnStartup bool, cfg TrainConfig) error {
	if loaded := r.Load(); len(loaded) > 0 || !trainOnStartup {
		return nil
	}
	if _, err := os.Stat(datasetPath); err != nil {
		r.logger.Warn("no models and no dataset; serving without models", log.DatasetPathKey, datasetPath)
		return nil
	}
	ds, err := student.Load(datasetPath)
	if err != nil {
		return err
	}
	r.logger.Info("no saved models; training", log.DatasetPathKey, datasetPath, log.SamplesKey, ds.Len())
	_, err = r.Retrain(ctx, ds, cfg)
	return err
}

// ModelsInfo is the /api/models/info payload.
type ModelsInfo struct {
	LoadedModels []string           `json:"loaded_models"`
	TotalModels  int                `json:"total_models"`
	ModelsDetail map[string]Metrics `json:"models_detail"`
}

// Info lists the loaded models with their stored training metrics.
func (r *Registry) Info() ModelsInfo {
	m := r.current()
	loaded := m.Loaded()
	info := ModelsInfo{
		LoadedModels: loaded,
		TotalModels:  len(loaded),
		ModelsDetail: make(map[string]Metrics, len(loaded)),
	}
	for _, name := range loaded {
		if metrics := m.Metrics[name]; len(metrics) > 0 {
			info.ModelsDetail[name] = metrics
		}
	}
	return info
}
