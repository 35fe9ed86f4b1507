// Package fit recovers a finite cylinder from an unstructured point cloud.
//
// The Fitter derives a distance threshold from the cloud's own extent,
// hands the cloud to an Estimator for a random-sample-consensus fit and
// then bounds the infinite model by the axial span of its inliers.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// ThresholdFraction scales the cloud's bounding diagonal into the
	// inlier distance threshold.
	ThresholdFraction = 0.025

	// MaxIterations bounds the consensus search.
	MaxIterations = 2000

	// MinInlierFraction is the share of the cloud a cylinder must explain
	// before it is reported.
	MinInlierFraction = 0.5

	// Guidance accompanies every fitting failure.
	Guidance = "try selecting more points spread across the cylindrical surface"
)

var (
	// ErrInsufficientPoints is returned for clouds with fewer than 3
	// points.
	ErrInsufficientPoints = errors.New("at least 3 points are required")

	// ErrFitFailed is returned when no cylinder could be fitted.
	ErrFitFailed = errors.New("cylinder fitting failed")

	// ErrFittingUnavailable is returned when the Fitter has no estimator.
	ErrFittingUnavailable = errors.New("cylinder fitting is not available")
)

// Model is an infinite cylinder as reported by an Estimator, together
// with the indices of the points that support it.
type Model struct {
	Center  r3.Vec
	Axis    r3.Vec
	Radius  float64
	Inliers []int
}

// Estimator fits an infinite cylinder to points. Points within threshold
// of the surface count as inliers.
type Estimator interface {
	Fit(points []r3.Vec, threshold float64, maxIterations int) (Model, error)
}

// Result is a finite cylinder.
type Result struct {
	ShapeType string     `json:"shapeType"`
	Center    [3]float64 `json:"center"`
	Axis      [3]float64 `json:"axis"`
	Radius    float64    `json:"radius"`
	Height    float64    `json:"height"`
	Inliers   int        `json:"inliers"`
	Threshold float64    `json:"threshold"`
}

// Fitter turns an Estimator's infinite model into a Result.
type Fitter struct {
	Estimator Estimator
}

// NewFitter returns a Fitter backed by a RANSAC estimator with a
// time-seeded random source.
func NewFitter() *Fitter {
	return &Fitter{Estimator: NewRANSAC(nil)}
}

// FitCylinder fits a cylinder to points. The reported center lies on the
// axis, halfway along the inliers' axial extent.
func (f *Fitter) FitCylinder(points []r3.Vec) (*Result, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("fit: %w: got %d", ErrInsufficientPoints, len(points))
	}
	if f == nil || f.Estimator == nil {
		return nil, ErrFittingUnavailable
	}

	diagonal := Diagonal(points)
	if !(diagonal > 0) || math.IsInf(diagonal, 0) {
		return nil, failed(errors.New("points do not span any volume"))
	}
	threshold := ThresholdFraction * diagonal

	model, err := f.Estimator.Fit(points, threshold, MaxIterations)
	if err != nil {
		return nil, failed(err)
	}
	if len(model.Inliers) == 0 || r3.Norm(model.Axis) == 0 || !(model.Radius > 0) {
		return nil, failed(errors.New("estimator returned a degenerate model"))
	}
	if float64(len(model.Inliers)) < MinInlierFraction*float64(len(points)) {
		return nil, failed(fmt.Errorf("best cylinder explains only %d of %d points", len(model.Inliers), len(points)))
	}

	axis := r3.Unit(model.Axis)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range model.Inliers {
		t := r3.Dot(r3.Sub(points[i], model.Center), axis)
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	center := r3.Add(model.Center, r3.Scale((lo+hi)/2, axis))

	return &Result{
		ShapeType: "Cylinder",
		Center:    [3]float64{center.X, center.Y, center.Z},
		Axis:      [3]float64{axis.X, axis.Y, axis.Z},
		Radius:    model.Radius,
		Height:    hi - lo,
		Inliers:   len(model.Inliers),
		Threshold: threshold,
	}, nil
}

// Diagonal returns the length of the cloud's axis-aligned bounding-box
// diagonal.
func Diagonal(points []r3.Vec) float64 {
	if len(points) == 0 {
		return 0
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return r3.Norm(r3.Sub(hi, lo))
}

func failed(err error) error {
	return fmt.Errorf("fit: %w: %v; %s", ErrFitFailed, err, Guidance)
}
