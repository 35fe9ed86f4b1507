package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Triangulation is the triangle mesh of a single face as produced by a
// kernel. Node identifiers are indices into Nodes; two nodes with equal
// coordinates are still distinct nodes (e.g. the seam of a closed
// surface). Positions are face-local.
type Triangulation struct {
	Nodes     []v3.Vec
	Triangles [][3]int
}

// NodeCount returns the number of nodes.
func (t *Triangulation) NodeCount() int {
	return len(t.Nodes)
}

// TriangleCount returns the number of triangles.
func (t *Triangulation) TriangleCount() int {
	return len(t.Triangles)
}

// IsEmpty returns true if the triangulation has no triangles.
func (t *Triangulation) IsEmpty() bool {
	return t == nil || len(t.Triangles) == 0
}
