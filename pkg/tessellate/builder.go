package tessellate

import (
	"github.com/chazu/facet/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
)

// BuildFace converts one face triangulation into an indexed sub-mesh.
// Vertices are deduplicated by kernel node identity: the first time a
// node is referenced it gets the next local index and its position,
// mapped through loc, is appended. Nodes the triangles never reference
// are left out. Coincident but distinct nodes (such as a cylinder seam)
// stay distinct. Triangles keep their source order and winding.
func BuildFace(tri *kernel.Triangulation, loc sdf.M44) FaceMesh {
	local := make(map[int]uint32, tri.NodeCount())
	fm := FaceMesh{
		Vertices: make([]float32, 0, 3*tri.NodeCount()),
		Indices:  make([]uint32, 0, 3*tri.TriangleCount()),
	}
	for _, t := range tri.Triangles {
		for _, node := range t {
			idx, ok := local[node]
			if !ok {
				idx = uint32(len(local))
				local[node] = idx
				p := loc.MulPosition(tri.Nodes[node])
				fm.Vertices = append(fm.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
			}
			fm.Indices = append(fm.Indices, idx)
		}
	}
	fm.VertexCount = len(fm.Vertices) / 3
	fm.TriangleCount = len(fm.Indices) / 3
	return fm
}

// globalBuffer accumulates face sub-meshes into one vertex and index
// space. Each face's indices are offset by the number of vertices
// already merged.
type globalBuffer struct {
	vertices []float32
	indices  []uint32
	faceIDs  []string
}

func (b *globalBuffer) vertexCount() int {
	return len(b.vertices) / 3
}

func (b *globalBuffer) merge(fm FaceMesh) {
	offset := uint32(b.vertexCount())
	b.vertices = append(b.vertices, fm.Vertices...)
	for _, idx := range fm.Indices {
		b.indices = append(b.indices, idx+offset)
	}
	for i := 0; i < fm.TriangleCount; i++ {
		b.faceIDs = append(b.faceIDs, fm.ID)
	}
}
