// Package api serves the EduInsight HTTP API with gin: dataset exploration,
// model predictions, local insight tools, SVG charts and the informational
// pages.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/eduinsight/pkg/config"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
	"github.com/YuminosukeSato/eduinsight/registry"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 15 * time.Second

// Server is the HTTP API.
type Server struct {
	cfg      *config.Config
	registry *registry.Registry
	logger   log.Logger
	router   *gin.Engine
}

// NewServer builds the router. cfg must already be validated.
func NewServer(cfg *config.Config, reg *registry.Registry) *Server {
	gin.SetMode(cfg.Server.GinMode)
	s := &Server{
		cfg:      cfg,
		registry: reg,
		logger:   log.GetLoggerWithName("api"),
		router:   gin.New(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(
		requestID(),
		s.accessLog(),
		s.recovery(),
		cors(s.cfg.Server.CORSOrigins),
	)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		api.GET("/dataset", s.handleDataset)
		api.GET("/dataset/sample", s.handleDatasetSample)
		api.GET("/dataset/export", s.handleDatasetExport)

		predict := api.Group("/predict")
		predict.POST("/linear-regression", s.handlePredictLinear)
		predict.POST("/naive-bayes", s.handlePredictNaiveBayes)
		predict.POST("/knn", s.handlePredictKNN)
		predict.POST("/svm", s.handlePredictSVM)
		predict.POST("/decision-tree", s.handlePredictTree)
		predict.POST("/ann", s.handlePredictANN)
		predict.POST("/ann/scenarios", s.handlePredictScenarios)

		api.POST("/insight/decision-path", s.handleDecisionPath)
		api.POST("/insight/forecast", s.handleForecast)

		api.GET("/models/info", s.handleModelsInfo)

		api.GET("/charts/:chart", s.handleChart)
	}
	s.router.GET("/pages/:name", s.handlePage)
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/pages/home")
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", log.ListenAddrKey, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("stopping HTTP server", log.ListenAddrKey, srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown")
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
