package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// SurfaceType is the analytic type a kernel reports for a face's surface.
type SurfaceType int

const (
	SurfacePlane SurfaceType = iota
	SurfaceCylinder
	SurfaceCone
	SurfaceSphere
	SurfaceTorus
	SurfaceBSpline
	SurfaceOther
)

func (t SurfaceType) String() string {
	switch t {
	case SurfacePlane:
		return "plane"
	case SurfaceCylinder:
		return "cylinder"
	case SurfaceCone:
		return "cone"
	case SurfaceSphere:
		return "sphere"
	case SurfaceTorus:
		return "torus"
	case SurfaceBSpline:
		return "bspline"
	}
	return "other"
}

// Axis is a located direction: a point and a direction vector.
type Axis struct {
	Location  v3.Vec
	Direction v3.Vec
}

// CylinderSurface describes an infinite circular cylinder in world space.
type CylinderSurface struct {
	Axis   Axis
	Radius float64
}

// SurfaceAdaptor exposes the analytic description of a face's surface,
// with the face's placement already applied.
type SurfaceAdaptor interface {
	Type() SurfaceType
	// Cylinder is only meaningful when Type() == SurfaceCylinder.
	Cylinder() CylinderSurface
}
