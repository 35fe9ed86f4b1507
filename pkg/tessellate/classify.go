package tessellate

import (
	"github.com/chazu/facet/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SurfaceType is the reported classification of a face.
type SurfaceType string

const (
	SurfacePlane    SurfaceType = "Plane"
	SurfaceCylinder SurfaceType = "Cylinder"
	SurfaceOther    SurfaceType = "Other"
)

// CylinderParams are the world-space parameters of a cylindrical face.
type CylinderParams struct {
	Center v3.Vec // a point on the axis
	Axis   v3.Vec // unit direction
	Radius float64
}

// Classification is the closed result of classifying a face: Cylinder is
// set exactly when Type is SurfaceCylinder.
type Classification struct {
	Type     SurfaceType
	Cylinder *CylinderParams
}

// Classify maps the kernel's analytic surface type onto Plane, Cylinder
// or Other. Cones, spheres, tori, B-splines and anything unrecognised are
// all Other.
func Classify(s kernel.SurfaceAdaptor) Classification {
	switch s.Type() {
	case kernel.SurfacePlane:
		return Classification{Type: SurfacePlane}
	case kernel.SurfaceCylinder:
		c := s.Cylinder()
		axis := c.Axis.Direction
		if l := axis.Length(); l > 0 {
			axis = axis.MulScalar(1 / l)
		}
		return Classification{
			Type: SurfaceCylinder,
			Cylinder: &CylinderParams{
				Center: c.Axis.Location,
				Axis:   axis,
				Radius: c.Radius,
			},
		}
	}
	return Classification{Type: SurfaceOther}
}
