package tessellate

import "fmt"

// FaceMesh is the indexed sub-mesh of one face. Indices refer to the
// face's own vertex list.
type FaceMesh struct {
	ID            string      `json:"id"`
	Vertices      []float32   `json:"vertices"`
	Indices       []uint32    `json:"indices"`
	VertexCount   int         `json:"vertexCount"`
	TriangleCount int         `json:"triangleCount"`
	SurfaceType   SurfaceType `json:"surfaceType"`

	// Set for cylindrical faces only.
	Radius float64     `json:"radius,omitempty"`
	Center *[3]float64 `json:"center,omitempty"`
	Axis   *[3]float64 `json:"axis,omitempty"`
}

// Mesh is the renderable record of a whole shape: every face merged into
// one global vertex and index space, plus the per-face sub-meshes and the
// owning face of each global triangle.
type Mesh struct {
	ID               string     `json:"id"`
	Vertices         []float32  `json:"vertices"`
	Indices          []uint32   `json:"indices"`
	Faces            []FaceMesh `json:"faces"`
	FaceIDByTriangle []string   `json:"faceIdByTriangle"`
	VertexCount      int        `json:"vertexCount"`
	TriangleCount    int        `json:"triangleCount"`
	FaceCount        int        `json:"faceCount"`
}

// IsEmpty returns true if the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Indices) == 0
}

// Validate checks the structural invariants of the record: every index
// is in range and the per-triangle face ids agree with the face
// sub-meshes.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("vertex buffer length %d is not a multiple of 3", len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("index buffer length %d is not a multiple of 3", len(m.Indices))
	}
	if m.VertexCount != len(m.Vertices)/3 || m.TriangleCount != len(m.Indices)/3 || m.FaceCount != len(m.Faces) {
		return fmt.Errorf("counts (%d, %d, %d) disagree with buffers", m.VertexCount, m.TriangleCount, m.FaceCount)
	}
	for i, idx := range m.Indices {
		if int(idx) >= m.VertexCount {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, m.VertexCount)
		}
	}
	sum := 0
	for _, f := range m.Faces {
		sum += f.TriangleCount
	}
	if len(m.FaceIDByTriangle) != m.TriangleCount || sum != m.TriangleCount {
		return fmt.Errorf("%d face ids, %d face triangles for %d triangles",
			len(m.FaceIDByTriangle), sum, m.TriangleCount)
	}
	return nil
}
