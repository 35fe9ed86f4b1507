// Package sdfx implements the kernel.Kernel interface on top of the
// github.com/deadsy/sdfx signed-distance-field library.
//
// An implicit solid has no topology, so every shape reports a single face
// whose surface is kernel.SurfaceOther. Meshing is marching cubes over the
// untransformed field; the placement is applied as the face transform.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*SdfxKernel)(nil)
var _ kernel.Shape = (*sdfxSolid)(nil)

// Marching cubes resolution bounds, in cells along the longest side.
const (
	minMeshCells = 8
	maxMeshCells = 200
)

// sdfxSolid is a distance field together with its placement.
type sdfxSolid struct {
	s         sdf.SDF3
	placement sdf.M44

	mesh       *kernel.Triangulation
	meshLinear float64
}

// FaceCount is always 1.
func (s *sdfxSolid) FaceCount() int {
	return 1
}

// sdfxFace is the single face of an sdfxSolid.
type sdfxFace struct {
	owner *sdfxSolid
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the solid from a kernel.Shape created by this kernel.
func unwrap(s kernel.Shape) *sdfxSolid {
	return s.(*sdfxSolid)
}

// wrap creates an unplaced kernel.Shape from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Shape {
	return &sdfxSolid{s: s, placement: sdf.Identity3d()}
}

// Box creates a box with its minimum corner at the origin. sdf.Box3D
// centers the box, so it is shifted by half its size.
func (k *SdfxKernel) Box(width, height, depth float64) (kernel.Shape, error) {
	for _, d := range []struct {
		name string
		v    float64
	}{{"width", width}, {"height", height}, {"depth", depth}} {
		if !(d.v > 0) {
			return nil, &kernel.InvalidDimensionError{Name: d.name, Value: d.v}
		}
	}
	s, err := sdf.Box3D(v3.Vec{X: width, Y: height, Z: depth}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: width / 2, Y: height / 2, Z: depth / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder whose axis runs along +Z from the origin to
// height.
func (k *SdfxKernel) Cylinder(radius, height float64) (kernel.Shape, error) {
	if !(radius > 0) {
		return nil, &kernel.InvalidDimensionError{Name: "radius", Value: radius}
	}
	if !(height > 0) {
		return nil, &kernel.InvalidDimensionError{Name: "height", Value: height}
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: height / 2}))), nil
}

// Import always fails: distance fields cannot be built from exchange
// files.
func (k *SdfxKernel) Import(path string, format kernel.Format) (kernel.Shape, error) {
	return nil, fmt.Errorf("%w: sdfx kernel cannot read %s files (%s)", kernel.ErrUnreadable, format, path)
}

// BoundingBox returns the placed field's bounding box.
func (k *SdfxKernel) BoundingBox(s kernel.Shape) (sdf.Box3, bool) {
	sol := unwrap(s)
	return sdf.Transform3D(sol.s, sol.placement).BoundingBox(), true
}

// meshCells picks a marching cubes resolution so that a cell is about
// linear wide along the longest side of box.
func meshCells(box sdf.Box3, linear float64) int {
	size := box.Size()
	extent := math.Max(size.X, math.Max(size.Y, size.Z))
	cells := int(math.Ceil(extent / linear))
	if cells < minMeshCells {
		return minMeshCells
	}
	if cells > maxMeshCells {
		return maxMeshCells
	}
	return cells
}

// Tessellate meshes the field with marching cubes. The angular deflection
// only has to be positive; the cell size is driven by linear alone.
func (k *SdfxKernel) Tessellate(s kernel.Shape, linear, angular float64) error {
	if !(linear > 0) || !(angular > 0) {
		return fmt.Errorf("%w: deflections must be positive (linear=%g, angular=%g)",
			kernel.ErrTessellation, linear, angular)
	}
	sol := unwrap(s)
	if sol.mesh != nil && sol.meshLinear <= linear {
		return nil
	}

	renderer := render.NewMarchingCubesUniform(meshCells(sol.s.BoundingBox(), linear))
	triangles := render.ToTriangles(sol.s, renderer)
	if len(triangles) == 0 {
		return fmt.Errorf("%w: marching cubes produced no triangles", kernel.ErrTessellation)
	}

	// Marching cubes emits free triangles; weld coincident corners into
	// shared nodes.
	tri := &kernel.Triangulation{Triangles: make([][3]int, 0, len(triangles))}
	nodes := make(map[v3.Vec]int, len(triangles))
	for _, t := range triangles {
		var idx [3]int
		for j := 0; j < 3; j++ {
			v := t[j]
			n, ok := nodes[v]
			if !ok {
				n = len(tri.Nodes)
				nodes[v] = n
				tri.Nodes = append(tri.Nodes, v)
			}
			idx[j] = n
		}
		if idx[0] == idx[1] || idx[1] == idx[2] || idx[0] == idx[2] {
			continue
		}
		tri.Triangles = append(tri.Triangles, idx)
	}
	sol.mesh, sol.meshLinear = tri, linear
	return nil
}

// Faces returns the shape's only face.
func (k *SdfxKernel) Faces(s kernel.Shape) []kernel.Face {
	return []kernel.Face{&sdfxFace{owner: unwrap(s)}}
}

// Triangulation returns the cached marching cubes mesh and the placement.
func (k *SdfxKernel) Triangulation(kf kernel.Face) (*kernel.Triangulation, sdf.M44, bool) {
	sol := kf.(*sdfxFace).owner
	if sol.mesh.IsEmpty() {
		return nil, sdf.Identity3d(), false
	}
	return sol.mesh, sol.placement, true
}

// Surface reports kernel.SurfaceOther for every face.
func (k *SdfxKernel) Surface(kernel.Face) kernel.SurfaceAdaptor {
	return otherSurface{}
}

// Move composes m with the shape's placement.
func (k *SdfxKernel) Move(s kernel.Shape, m sdf.M44) {
	sol := unwrap(s)
	sol.placement = m.Mul(sol.placement)
}

type otherSurface struct{}

func (otherSurface) Type() kernel.SurfaceType          { return kernel.SurfaceOther }
func (otherSurface) Cylinder() kernel.CylinderSurface { return kernel.CylinderSurface{} }
