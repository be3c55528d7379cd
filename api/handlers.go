package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/eduinsight/chart"
	"github.com/YuminosukeSato/eduinsight/content"
	"github.com/YuminosukeSato/eduinsight/insight"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/registry"
	"github.com/YuminosukeSato/eduinsight/student"
)

// DefaultSampleLimit is the sample size when ?limit is absent or not a number.
const DefaultSampleLimit = 20

// Health is the /api/health payload.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sample is the /api/dataset/sample payload.
type Sample struct {
	TotalRecords int              `json:"total_records"`
	Sample       []student.Record `json:"sample"`
}

// DecisionPathResponse is the decision-path result with the marked diagram.
type DecisionPathResponse struct {
	insight.DecisionResult
	Diagram *insight.TreeNode `json:"diagram"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: "healthy", Message: "EduInsight Analytics API is running"})
}

// dataset reads the dataset file on every call so edits show up without a
// restart.
func (s *Server) dataset() (*student.Dataset, error) {
	return student.Load(s.cfg.Data.Path())
}

// queryInt returns the integer query parameter, or def when it is absent or
// malformed.
func queryInt(c *gin.Context, name string, def int) int {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleDataset(c *gin.Context) {
	ds, err := s.dataset()
	if err != nil {
		s.fail(c, err)
		return
	}
	info, err := ds.Info()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDatasetSample(c *gin.Context) {
	ds, err := s.dataset()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Sample{
		TotalRecords: ds.Len(),
		Sample:       ds.Head(queryInt(c, "limit", DefaultSampleLimit)),
	})
}

func (s *Server) handleDatasetExport(c *gin.Context) {
	ds, err := s.dataset()
	if err != nil {
		s.fail(c, err)
		return
	}
	records := ds.Head(queryInt(c, "limit", DefaultSampleLimit))

	var (
		buf         bytes.Buffer
		contentType string
		ext         string
	)
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		err = student.WriteCSV(&buf, records)
		contentType, ext = "text/csv; charset=utf-8", ".csv"
	case "xlsx":
		err = student.WriteXLSX(&buf, records)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"
	default:
		s.fail(c, errors.NewValidationError("format", "must be csv or xlsx", format))
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+student.ExportFilename+ext+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// predict binds the request body and writes whatever fn returns.
func (s *Server) predict(c *gin.Context, fn func(req registry.PredictRequest) (any, error)) {
	var req registry.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}
	resp, err := fn(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredictLinear(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.PredictGrade(req.Features)
	})
}

func (s *Server) handlePredictNaiveBayes(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.AssessRisk(req.Features)
	})
}

func (s *Server) handlePredictKNN(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.FindNeighbors(req.Features, req.KOrDefault())
	})
}

func (s *Server) handlePredictSVM(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.Classify(req.Features)
	})
}

func (s *Server) handlePredictTree(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.ExplainTree(req.Features)
	})
}

func (s *Server) handlePredictANN(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.ForecastGrades(req.Features, req.PeriodsOrDefault())
	})
}

func (s *Server) handlePredictScenarios(c *gin.Context) {
	s.predict(c, func(req registry.PredictRequest) (any, error) {
		return s.registry.ForecastScenarios(req.Features)
	})
}

// bindForm decodes a JSON object of form values. Numbers are accepted as well
// as strings; null is an empty field.
func bindForm(c *gin.Context) (map[string]string, error) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, err
	}
	form := make(map[string]string, len(raw))
	for k, v := range raw {
		switch x := v.(type) {
		case nil:
			form[k] = ""
		case string:
			form[k] = x
		case float64:
			form[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, errors.Newf("field %q must be a string or a number", k)
		}
	}
	return form, nil
}

// queryForm returns the first value of every query parameter.
func queryForm(c *gin.Context) map[string]string {
	q := c.Request.URL.Query()
	form := make(map[string]string, len(q))
	for k := range q {
		form[k] = q.Get(k)
	}
	return form
}

func (s *Server) handleDecisionPath(c *gin.Context) {
	form, err := bindForm(c)
	if err != nil {
		s.badBody(c, err)
		return
	}
	res, err := insight.ClassifyForm(form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DecisionPathResponse{DecisionResult: res, Diagram: res.Diagram()})
}

func (s *Server) handleForecast(c *gin.Context) {
	form, err := bindForm(c)
	if err != nil {
		s.badBody(c, err)
		return
	}
	trend, err := insight.ForecastFromForm(form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

func (s *Server) handleModelsInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Info())
}

// Chart names served under /api/charts.
const (
	ChartForecast   = "forecast.svg"
	ChartGrades     = "grades.svg"
	ChartRegression = "regression.svg"
)

func (s *Server) handleChart(c *gin.Context) {
	var buf bytes.Buffer
	var err error
	switch name := c.Param("chart"); name {
	case ChartForecast:
		err = s.forecastChart(c, &buf)
	case ChartGrades:
		err = s.gradesChart(&buf)
	case ChartRegression:
		err = s.regressionChart(&buf)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

// forecastChart plots the trend curves for the inputs given as query
// parameters.
func (s *Server) forecastChart(c *gin.Context, buf *bytes.Buffer) error {
	trend, err := insight.ForecastFromForm(queryForm(c))
	if err != nil {
		return err
	}
	return chart.TrendChart(trend).WriteSVG(buf)
}

func (s *Server) gradesChart(buf *bytes.Buffer) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	grades, err := ds.Column(student.GradeColumn)
	if err != nil {
		return err
	}
	p, err := chart.GradeHistogram(grades)
	if err != nil {
		return err
	}
	return chart.WriteSVG(buf, p)
}

func (s *Server) regressionChart(buf *bytes.Buffer) error {
	ds, err := s.dataset()
	if err != nil {
		return err
	}
	td, err := ds.TrainingData()
	if err != nil {
		return err
	}
	actual, predicted, err := s.registry.GradeFit(td)
	if err != nil {
		return err
	}
	p, err := chart.RegressionScatter(actual, predicted)
	if err != nil {
		return err
	}
	return chart.WriteSVG(buf, p)
}

func (s *Server) handlePage(c *gin.Context) {
	page, err := content.Render(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := page.WriteDocument(&buf); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
