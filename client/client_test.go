package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

// recorded is what the fake server saw.
type recorded struct {
	method      string
	path        string
	query       string
	contentType string
	body        registry.PredictRequest
}

func fakeServer(t *testing.T, status int, response any) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.contentType = r.Header.Get("Content-Type")
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestHealth(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, map[string]string{"status": "healthy", "message": "ok"})
	h, err := New(srv.URL + "/").Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/health", rec.path)
	assert.Equal(t, "application/json", rec.contentType)
}

func TestDatasetSample(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, map[string]any{
		"total_records": 395,
		"sample":        []map[string]any{{"age": 18, "sex": "F"}},
	})
	s, err := New(srv.URL).DatasetSample(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "/api/dataset/sample", rec.path)
	assert.Equal(t, "limit=100", rec.query)
	assert.Equal(t, 395, s.TotalRecords)
	require.Len(t, s.Sample, 1)
	assert.Equal(t, "F", s.Sample[0]["sex"])
}

func TestPredictKNN_SendsK(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, registry.NeighborsResult{PredictedLabel: "Good", K: 7})
	f := student.DefaultFeatures()
	res, err := New(srv.URL).PredictKNN(context.Background(), f, 7)
	require.NoError(t, err)
	assert.Equal(t, "Good", res.PredictedLabel)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/predict/knn", rec.path)
	assert.Equal(t, "application/json", rec.contentType)
	require.NotNil(t, rec.body.K)
	assert.Equal(t, 7, *rec.body.K)
	assert.Equal(t, f, rec.body.Features)
}

func TestPredictANN_SendsPeriods(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, registry.GradeForecast{Periods: 6})
	res, err := New(srv.URL).PredictANN(context.Background(), student.DefaultFeatures(), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Periods)
	assert.Equal(t, "/api/predict/ann", rec.path)
	require.NotNil(t, rec.body.Periods)
	assert.Equal(t, 6, *rec.body.Periods)
	assert.Nil(t, rec.body.K)
}

func TestPredict_Endpoints(t *testing.T) {
	f := student.DefaultFeatures()
	tests := []struct {
		path string
		call func(c *Client) error
	}{
		{"/api/predict/linear-regression", func(c *Client) error {
			_, err := c.PredictLinearRegression(context.Background(), f)
			return err
		}},
		{"/api/predict/naive-bayes", func(c *Client) error {
			_, err := c.PredictNaiveBayes(context.Background(), f)
			return err
		}},
		{"/api/predict/svm", func(c *Client) error {
			_, err := c.PredictSVM(context.Background(), f)
			return err
		}},
		{"/api/predict/decision-tree", func(c *Client) error {
			_, err := c.PredictDecisionTree(context.Background(), f)
			return err
		}},
		{"/api/predict/ann/scenarios", func(c *Client) error {
			_, err := c.PredictScenarios(context.Background(), f)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			srv, rec := fakeServer(t, http.StatusOK, map[string]any{})
			require.NoError(t, tt.call(New(srv.URL)))
			assert.Equal(t, tt.path, rec.path)
			assert.Equal(t, http.MethodPost, rec.method)
		})
	}
}

func TestNon2xx_IsAPIError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusServiceUnavailable, map[string]string{
		"error": "Model not loaded. Please train the models first.",
	})
	_, err := New(srv.URL).PredictSVM(context.Background(), student.DefaultFeatures())
	require.Error(t, err)
	assert.Equal(t, "API Error: Service Unavailable", err.Error())

	var apiErr *errors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "/predict/svm", apiErr.Endpoint)
	assert.Equal(t, "Model not loaded. Please train the models first.", apiErr.Message)
}

func TestNon2xx_WithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).DatasetInfo(context.Background())
	assert.EqualError(t, err, "API Error: Not Found")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Health(context.Background())
	require.Error(t, err)
	var apiErr *errors.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).ModelsInfo(context.Background())
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, map[string]string{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL).Health(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
