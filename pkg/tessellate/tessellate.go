// Package tessellate turns a kernel shape into a renderable indexed
// triangle mesh. Each face is meshed by the kernel, classified by its
// surface type, converted to an indexed sub-mesh and merged into one
// global buffer whose triangles remember which face they came from.
package tessellate

import (
	"fmt"

	"github.com/chazu/facet/pkg/kernel"
)

// Fixed meshing tolerances.
const (
	LinearDeflection  = 0.1 // model units
	AngularDeflection = 0.5 // radians
)

// Assemble tessellates s and produces its mesh record under the given
// id. Faces are visited in kernel traversal order and named face_<n>
// after their traversal index, so a face without a triangulation leaves
// a gap in the numbering. A tessellation failure yields no mesh at all.
func Assemble(k kernel.Kernel, s kernel.Shape, id string) (*Mesh, error) {
	if err := k.Tessellate(s, LinearDeflection, AngularDeflection); err != nil {
		return nil, fmt.Errorf("tessellate: shape %s: %w", id, err)
	}

	var buf globalBuffer
	faces := make([]FaceMesh, 0, s.FaceCount())
	for i, f := range k.Faces(s) {
		tri, loc, ok := k.Triangulation(f)
		if !ok || tri.IsEmpty() {
			continue
		}
		fm := BuildFace(tri, loc)
		fm.ID = fmt.Sprintf("face_%d", i)
		applyClassification(&fm, Classify(k.Surface(f)))
		buf.merge(fm)
		faces = append(faces, fm)
	}

	return &Mesh{
		ID:               id,
		Vertices:         nonNilFloats(buf.vertices),
		Indices:          nonNilIndices(buf.indices),
		Faces:            faces,
		FaceIDByTriangle: nonNilStrings(buf.faceIDs),
		VertexCount:      buf.vertexCount(),
		TriangleCount:    len(buf.indices) / 3,
		FaceCount:        len(faces),
	}, nil
}

func applyClassification(fm *FaceMesh, c Classification) {
	fm.SurfaceType = c.Type
	if c.Cylinder == nil {
		return
	}
	p := c.Cylinder
	fm.Radius = p.Radius
	fm.Center = &[3]float64{p.Center.X, p.Center.Y, p.Center.Z}
	fm.Axis = &[3]float64{p.Axis.X, p.Axis.Y, p.Axis.Z}
}

// Empty buffers encode as [] rather than null.

func nonNilFloats(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func nonNilIndices(v []uint32) []uint32 {
	if v == nil {
		return []uint32{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
