// Package eduinsight predicts and explains student performance from the UCI
// student-performance dataset.
//
// It bundles seven models trained on the same dataset, two rule-based
// insight tools that need no trained model, an HTTP API that serves both,
// and a CLI that drives the API the way the web pages do.
//
// # Quick Start
//
// Train the models and start the API:
//
//	eduinsight train --seed 7
//	eduinsight serve --port 5000
//
// Ask for a risk assessment through the same form the page uses:
//
//	eduinsight predict naive-bayes --field age=17 --field studytime=2 \
//	  --field absences=4 --field G1=12 --field G2=13
//
// The insight tools run locally:
//
//	eduinsight classify --attendance 80 --assignments 85 --test-score 90
//	eduinsight forecast --current-score 70 --study-hours 10 \
//	  --assignment-quality 80 --participation 60 --svg forecast.svg
//
// From Go, the registry can be used directly:
//
//	ds, err := student.Load("data/student-mat.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg := registry.New("artifacts")
//	if _, err := reg.Retrain(ctx, ds, registry.DefaultTrainConfig()); err != nil {
//	    log.Fatal(err)
//	}
//	risk, err := reg.AssessRisk(features)
//
// # Packages
//
//   - student: dataset loading, statistics, feature vectors and export
//   - insight: decision-path classifier and trend generator
//   - registry: model training, persistence and prediction payloads
//   - linear, sklearn/...: the estimators (regression, naive Bayes, KNN, SVM, tree, MLP)
//   - metrics, preprocessing: evaluation metrics, scaling, splitting, label encoding
//   - core/model, core/parallel: estimator state, persistence, parallel loops
//   - chart, content: SVG charts and the embedded informational pages
//   - api, client, page: HTTP server, HTTP client and page form controllers
//   - pkg/errors, pkg/log, pkg/config: ambient error, logging and configuration
//
// # Configuration
//
// Settings come from EDUINSIGHT_* environment variables, optionally loaded
// from a .env file, and can be overridden by CLI flags. See pkg/config.
package eduinsight
