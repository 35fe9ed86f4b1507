package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chazu/facet/pkg/fit"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/stlstore"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// errEmptyBody is returned by bindJSON when a required body is missing.
var errEmptyBody = errors.New("empty request body")

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scene.ErrShapeNotFound), errors.Is(err, stlstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scene.ErrUnsupportedFormat),
		errors.Is(err, scene.ErrInvalidDimensions),
		errors.Is(err, scene.ErrInvalidTranslation),
		errors.Is(err, scene.ErrInvalidRotation),
		errors.Is(err, stlstore.ErrInvalidName),
		errors.Is(err, fit.ErrInsufficientPoints),
		errors.Is(err, errEmptyBody):
		return http.StatusBadRequest
	case errors.Is(err, fit.ErrFitFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fit.ErrFittingUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err with the status statusFor picks. Server errors carry
// the summary in error and the cause in details.
func (s *Server) fail(c *gin.Context, summary string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(summary, zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": summary, "details": err.Error()})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// badRequest writes a 400 with msg.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

// bindJSON binds the request body into v. An empty body or an empty
// object is reported as errEmptyBody and leaves v untouched.
func bindJSON(c *gin.Context, v any) error {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindBodyWith(&fields, binding.JSON); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if len(fields) == 0 {
		return errEmptyBody
	}
	if err := c.ShouldBindBodyWith(v, binding.JSON); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
