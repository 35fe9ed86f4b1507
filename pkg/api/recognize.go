package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/chazu/facet/pkg/fit"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

type recognizeRequest struct {
	Points [][]float64 `json:"points"`
}

// FitResponse carries a fitted cylinder.
type FitResponse struct {
	Success bool        `json:"success"`
	Result  *fit.Result `json:"result"`
}

// RecognizeCylinder fits a cylinder to the posted point cloud.
func (s *Server) RecognizeCylinder(c *gin.Context) {
	var req recognizeRequest
	if err := bindJSON(c, &req); err != nil {
		s.metrics.RecordFit(metrics.FitInvalid)
		if errors.Is(err, errEmptyBody) {
			badRequest(c, "points are required")
			return
		}
		badRequest(c, err.Error())
		return
	}
	if req.Points == nil {
		s.metrics.RecordFit(metrics.FitInvalid)
		badRequest(c, "points are required")
		return
	}

	points := make([]r3.Vec, len(req.Points))
	for i, p := range req.Points {
		if len(p) != 3 {
			s.metrics.RecordFit(metrics.FitInvalid)
			badRequest(c, fmt.Sprintf("point %d must have 3 coordinates, got %d", i, len(p)))
			return
		}
		points[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}

	res, err := s.fitter.FitCylinder(points)
	if err != nil {
		outcome := metrics.FitFailed
		switch statusFor(err) {
		case http.StatusBadRequest:
			outcome = metrics.FitInvalid
		case http.StatusServiceUnavailable:
			outcome = metrics.FitUnavailable
		}
		s.metrics.RecordFit(outcome)
		s.logger.Warn("cylinder fit failed", zap.Int("points", len(points)), zap.Error(err))
		s.failFit(c, err)
		return
	}

	s.metrics.RecordFit(metrics.FitSuccess)
	s.logger.Info("cylinder fitted",
		zap.Int("points", len(points)),
		zap.Int("inliers", res.Inliers),
		zap.Float64("radius", res.Radius),
		zap.Float64("height", res.Height))
	c.JSON(http.StatusOK, FitResponse{Success: true, Result: res})
}

// failFit adds the guidance text to fitting failures.
func (s *Server) failFit(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"success": false, "error": err.Error()}
	if status == http.StatusUnprocessableEntity {
		body["guidance"] = fit.Guidance
	}
	c.JSON(status, body)
}
