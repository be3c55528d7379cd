package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDCtxKey = "request_id"

// requestID keeps an incoming request ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDCtxKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// accessLog writes one record per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			log.RequestIDKey, c.GetString(requestIDCtxKey),
			log.MethodKey, c.Request.Method,
			log.PathKey, c.Request.URL.Path,
			log.StatusKey, status,
			log.ClientIPKey, c.ClientIP(),
			log.UserAgentKey, c.Request.UserAgent(),
			log.BytesOutKey, c.Writer.Size(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("HTTP request", fields...)
		default:
			s.logger.Info("HTTP request", fields...)
		}
	}
}

// recovery turns a handler panic into a 500 and logs it with its stack.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		op := c.Request.Method + " " + c.Request.URL.Path
		err := errors.SafeExecute(op, func() error {
			c.Next()
			return nil
		})
		if err == nil {
			return
		}

		var stack string
		var pe *errors.PanicError
		if errors.As(err, &pe) {
			stack = pe.StackTrace
		}
		s.logger.Error("panic recovered",
			err,
			log.RequestIDKey, c.GetString(requestIDCtxKey),
			log.StacktraceAttrKey, stack,
		)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

// cors answers preflight requests and allows the configured origins.
// "*" allows any origin.
func cors(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(origins, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", Content-Disposition")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
