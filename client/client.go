// Package client is a typed HTTP client for the EduInsight API.
//
// Every request carries Content-Type: application/json. A non-2xx response
// becomes an *errors.APIError reading "API Error: <status text>". There is no
// retry and no client-side timeout unless the caller sets one on ctx or on
// the http.Client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

// Client talks to one API server.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:5000". Endpoints live under baseURL + "/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		http:    http.DefaultClient,
		logger:  log.GetLoggerWithName("client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusText is the reason phrase of resp, e.g. "Service Unavailable".
func statusText(resp *http.Response) string {
	if s := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); s != "" && s != resp.Status {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

// do sends body as JSON (when non-nil) and decodes the response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API request failed", err, log.PathKey, endpoint)
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	c.logger.Debug("API request",
		log.MethodKey, method,
		log.PathKey, endpoint,
		log.StatusKey, resp.StatusCode,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		err := errors.NewAPIError(endpoint, resp.StatusCode, statusText(resp), payload.Error)
		c.logger.Error("API request failed", err, log.PathKey, endpoint, log.StatusKey, resp.StatusCode)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}

// Health is the /health payload.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DatasetInfo is the /dataset payload. Records are decoded as plain maps.
type DatasetInfo struct {
	Shape                   [2]int                     `json:"shape"`
	Columns                 []string                   `json:"columns"`
	DTypes                  map[string]string          `json:"dtypes"`
	MissingValues           map[string]int             `json:"missing_values"`
	Statistics              map[string]student.Summary `json:"statistics"`
	Sample                  []map[string]any           `json:"sample"`
	PerformanceDistribution map[string]int             `json:"performance_distribution"`
	GradeRange              student.GradeRange         `json:"grade_range"`
}

// DatasetSample is the /dataset/sample payload.
type DatasetSample struct {
	TotalRecords int              `json:"total_records"`
	Sample       []map[string]any `json:"sample"`
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DatasetInfo fetches the dataset overview.
func (c *Client) DatasetInfo(ctx context.Context) (*DatasetInfo, error) {
	var out DatasetInfo
	if err := c.do(ctx, http.MethodGet, "/dataset", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DatasetSample fetches the first limit records.
func (c *Client) DatasetSample(ctx context.Context, limit int) (*DatasetSample, error) {
	var out DatasetSample
	if err := c.do(ctx, http.MethodGet, "/dataset/sample?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModelsInfo lists the loaded models.
func (c *Client) ModelsInfo(ctx context.Context) (*registry.ModelsInfo, error) {
	var out registry.ModelsInfo
	if err := c.do(ctx, http.MethodGet, "/models/info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func predict[T any](ctx context.Context, c *Client, endpoint string, req registry.PredictRequest) (*T, error) {
	var out T
	if err := c.do(ctx, http.MethodPost, "/predict/"+endpoint, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictLinearRegression predicts the final grade.
func (c *Client) PredictLinearRegression(ctx context.Context, f student.Features) (*registry.GradePrediction, error) {
	return predict[registry.GradePrediction](ctx, c, "linear-regression", registry.PredictRequest{Features: f})
}

// PredictNaiveBayes assesses the risk level.
func (c *Client) PredictNaiveBayes(ctx context.Context, f student.Features) (*registry.RiskAssessment, error) {
	return predict[registry.RiskAssessment](ctx, c, "naive-bayes", registry.PredictRequest{Features: f})
}

// PredictKNN finds the k most similar students.
func (c *Client) PredictKNN(ctx context.Context, f student.Features, k int) (*registry.NeighborsResult, error) {
	return predict[registry.NeighborsResult](ctx, c, "knn", registry.PredictRequest{Features: f, K: &k})
}

// PredictSVM classifies the student.
func (c *Client) PredictSVM(ctx context.Context, f student.Features) (*registry.Classification, error) {
	return predict[registry.Classification](ctx, c, "svm", registry.PredictRequest{Features: f})
}

// PredictDecisionTree explains the tree's decision.
func (c *Client) PredictDecisionTree(ctx context.Context, f student.Features) (*registry.DecisionPath, error) {
	return predict[registry.DecisionPath](ctx, c, "decision-tree", registry.PredictRequest{Features: f})
}

// PredictANN forecasts the grade over periods.
func (c *Client) PredictANN(ctx context.Context, f student.Features, periods int) (*registry.GradeForecast, error) {
	return predict[registry.GradeForecast](ctx, c, "ann", registry.PredictRequest{Features: f, Periods: &periods})
}

// PredictScenarios forecasts the grade under the fixed what-if scenarios.
func (c *Client) PredictScenarios(ctx context.Context, f student.Features) (*registry.ScenarioForecast, error) {
	return predict[registry.ScenarioForecast](ctx, c, "ann/scenarios", registry.PredictRequest{Features: f})
}
