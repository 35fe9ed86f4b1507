// Package brep implements the kernel.Kernel interface with a small native
// boundary-representation kernel. Solids are lists of faces bounded by
// line and circular-arc edges on planar and cylindrical surfaces, placed
// with github.com/deadsy/sdfx transforms. STEP files are read through a
// subset ISO 10303-21 reader; faces on surfaces the kernel cannot mesh are
// kept (they still classify) but carry no triangulation.
package brep

import (
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*Kernel)(nil)
var _ kernel.Shape = (*solid)(nil)

// solid is a shape: an ordered face list and a placement.
type solid struct {
	placement sdf.M44
	faces     []*face
}

// FaceCount returns the number of faces.
func (s *solid) FaceCount() int {
	return len(s.faces)
}

// planeFrame is the local frame of a planar face. xdir and ydir span the
// plane, normal points out of the material.
type planeFrame struct {
	origin v3.Vec
	normal v3.Vec
	xdir   v3.Vec
	ydir   v3.Vec
}

// cylinderFrame is a cylinder surface with its parametric window:
// u is the angle about axis measured from xdir, v the height along axis.
type cylinderFrame struct {
	origin     v3.Vec
	axis       v3.Vec
	xdir       v3.Vec
	radius     float64
	uMin, uMax float64
	vMin, vMax float64
}

// face is one topological face.
type face struct {
	owner    *solid
	location sdf.M44 // face-local to shape-local
	kind     kernel.SurfaceType
	reversed bool

	plane planeFrame
	cyl   cylinderFrame
	loops []loop // loops[0] is the outer boundary

	mesh       *kernel.Triangulation
	meshLinear float64
	meshAngle  float64
}

// Kernel is the native B-rep kernel.
type Kernel struct{}

// New returns a new Kernel.
func New() *Kernel {
	return &Kernel{}
}

// unwrap extracts the solid from a kernel.Shape created by this kernel.
func unwrap(s kernel.Shape) *solid {
	return s.(*solid)
}

// worldTransform returns the face-local to world transform.
func (f *face) worldTransform() sdf.M44 {
	return f.owner.placement.Mul(f.location)
}

// BoundingBox returns the world-space box around every boundary edge.
func (k *Kernel) BoundingBox(s kernel.Shape) (sdf.Box3, bool) {
	var (
		box sdf.Box3
		ok  bool
	)
	for _, f := range unwrap(s).faces {
		m := f.worldTransform()
		for _, l := range f.loops {
			for _, e := range l {
				eb := e.bounds(m)
				if !ok {
					box, ok = eb, true
					continue
				}
				box = sdf.Box3{Min: box.Min.Min(eb.Min), Max: box.Max.Max(eb.Max)}
			}
		}
	}
	return box, ok
}

// Tessellate meshes every face at the given deflections. Faces whose
// cached mesh is at least as fine are left alone; faces that cannot be
// meshed end up without a triangulation.
func (k *Kernel) Tessellate(s kernel.Shape, linear, angular float64) error {
	if !(linear > 0) || !(angular > 0) {
		return fmt.Errorf("%w: deflections must be positive (linear=%g, angular=%g)",
			kernel.ErrTessellation, linear, angular)
	}
	sol := unwrap(s)
	if len(sol.faces) == 0 {
		return fmt.Errorf("%w: shape has no faces", kernel.ErrTessellation)
	}
	for _, f := range sol.faces {
		if f.mesh != nil && f.meshLinear <= linear && f.meshAngle <= angular {
			continue
		}
		tri, err := meshFace(f, linear, angular)
		if err != nil {
			f.mesh = nil
			continue
		}
		f.mesh, f.meshLinear, f.meshAngle = tri, linear, angular
	}
	return nil
}

// Faces returns the faces in construction order.
func (k *Kernel) Faces(s kernel.Shape) []kernel.Face {
	sol := unwrap(s)
	out := make([]kernel.Face, len(sol.faces))
	for i, f := range sol.faces {
		out[i] = f
	}
	return out
}

// Triangulation returns the cached face mesh and its world transform.
func (k *Kernel) Triangulation(kf kernel.Face) (*kernel.Triangulation, sdf.M44, bool) {
	f := kf.(*face)
	if f.mesh.IsEmpty() {
		return nil, sdf.Identity3d(), false
	}
	return f.mesh, f.worldTransform(), true
}

// Surface returns the face's analytic surface in world space.
func (k *Kernel) Surface(kf kernel.Face) kernel.SurfaceAdaptor {
	f := kf.(*face)
	return &adaptor{f: f, m: f.worldTransform()}
}

// Move composes m with the shape's placement.
func (k *Kernel) Move(s kernel.Shape, m sdf.M44) {
	sol := unwrap(s)
	sol.placement = m.Mul(sol.placement)
}

// adaptor implements kernel.SurfaceAdaptor over one face.
type adaptor struct {
	f *face
	m sdf.M44
}

func (a *adaptor) Type() kernel.SurfaceType {
	return a.f.kind
}

func (a *adaptor) Cylinder() kernel.CylinderSurface {
	c := a.f.cyl
	return kernel.CylinderSurface{
		Axis: kernel.Axis{
			Location:  a.m.MulPosition(c.origin),
			Direction: transformDir(a.m, c.origin, c.axis).Normalize(),
		},
		Radius: c.radius,
	}
}

// transformDir maps a direction anchored at p through a rigid transform.
func transformDir(m sdf.M44, p, d v3.Vec) v3.Vec {
	return m.MulPosition(p.Add(d)).Sub(m.MulPosition(p))
}

// orthoFrame returns a unit x direction perpendicular to n, preferring
// ref when it is not parallel to n.
func orthoFrame(n, ref v3.Vec) (x, y v3.Vec) {
	n = n.Normalize()
	x = ref.Sub(n.MulScalar(ref.Dot(n)))
	if x.Length() < 1e-9 {
		ref = v3.Vec{X: 1}
		if math.Abs(n.X) > 0.9 {
			ref = v3.Vec{Y: 1}
		}
		x = ref.Sub(n.MulScalar(ref.Dot(n)))
	}
	x = x.Normalize()
	return x, n.Cross(x)
}

func newPlaneFrame(origin, normal, ref v3.Vec) planeFrame {
	x, y := orthoFrame(normal, ref)
	return planeFrame{origin: origin, normal: normal.Normalize(), xdir: x, ydir: y}
}
