package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/eduinsight/content"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
	"github.com/YuminosukeSato/eduinsight/pkg/log"
)

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var (
		ve *errors.ValidationError
		mf *errors.MissingFieldsError
		mu *errors.ModelUnavailableError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &mf):
		return http.StatusBadRequest
	case errors.As(err, &mu):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrDatasetNotFound), errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// message is the error field of the response body.
func message(err error) string {
	var mu *errors.ModelUnavailableError
	switch {
	case errors.As(err, &mu):
		return mu.Error()
	case errors.Is(err, errors.ErrDatasetNotFound):
		return errors.ErrDatasetNotFound.Error()
	case errors.Is(err, content.ErrNotFound):
		return content.ErrNotFound.Error()
	}
	return err.Error()
}

// fail aborts the request with {error: message}.
func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			err,
			log.RequestIDKey, c.GetString(requestIDCtxKey),
			log.PathKey, c.Request.URL.Path,
		)
	} else {
		s.logger.Debug("request rejected",
			log.RequestIDKey, c.GetString(requestIDCtxKey),
			log.StatusKey, status,
			"error", err.Error(),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message(err)})
}

// badBody reports a request body that could not be decoded.
func (s *Server) badBody(c *gin.Context, err error) {
	s.fail(c, errors.NewValidationError("body", "malformed JSON", err.Error()))
}
