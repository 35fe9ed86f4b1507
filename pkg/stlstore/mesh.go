package stlstore

import (
	"fmt"

	"github.com/chazu/facet/pkg/tessellate"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Triangles expands an indexed mesh into one triangle per index triple.
func Triangles(m *tessellate.Mesh) []*sdf.Triangle3 {
	vertex := func(i uint32) v3.Vec {
		return v3.Vec{
			X: float64(m.Vertices[3*i]),
			Y: float64(m.Vertices[3*i+1]),
			Z: float64(m.Vertices[3*i+2]),
		}
	}
	tris := make([]*sdf.Triangle3, 0, len(m.Indices)/3)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		tris = append(tris, &sdf.Triangle3{
			vertex(m.Indices[t]),
			vertex(m.Indices[t+1]),
			vertex(m.Indices[t+2]),
		})
	}
	return tris
}

// SaveMesh writes m as a binary STL file <project>/<group>.stl. The
// metadata file records the source shape and triangle count.
func (s *Store) SaveMesh(projectID, group string, m *tessellate.Mesh) (*Stored, error) {
	if m.IsEmpty() {
		return nil, fmt.Errorf("stlstore: shape %s has no triangles", m.ID)
	}
	meta := map[string]any{
		"shapeId":       m.ID,
		"triangleCount": m.TriangleCount,
		"faceCount":     m.FaceCount,
	}
	return s.SaveWith(projectID, group, meta, func(path string) error {
		return render.SaveSTL(path, Triangles(m))
	})
}
